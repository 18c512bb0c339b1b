package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/0xvega/fillfeed/poll"
)

// Config holds RPC client configuration.
type Config struct {
	// Endpoint is the JSON-RPC endpoint URL.
	Endpoint string

	// Program is the base58 program ID whose signatures are tracked.
	Program string

	// Timeout bounds each RPC call.
	Timeout time.Duration

	// RequestsPerSecond and Burst shape the client-side rate limit
	// applied to every call. Public endpoints throttle aggressively;
	// pacing requests beats being banned.
	RequestsPerSecond float64
	Burst             int

	Logger *zap.Logger
}

// Validate validates the client configuration.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	if c.Program == "" {
		return fmt.Errorf("program is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests per second must be positive")
	}
	return nil
}

// Client implements poll.Client over a Solana JSON-RPC endpoint. All
// queries use finalized commitment so the cursor never advances over a
// signature that could be reverted.
type Client struct {
	rpc     *rpc.Client
	program solana.PublicKey
	limiter *rate.Limiter
	timeout time.Duration
	logger  *zap.Logger
}

// NewClient creates a Client.
func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid client config: %w", err)
	}

	program, err := solana.PublicKeyFromBase58(config.Program)
	if err != nil {
		return nil, fmt.Errorf("invalid program id %q: %w", config.Program, err)
	}

	burst := config.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		rpc:     rpc.New(config.Endpoint),
		program: program,
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst),
		timeout: config.Timeout,
		logger:  config.Logger,
	}, nil
}

// LatestSignature returns the most recent finalized signature for the
// tracked program, or nil when the program has no history.
func (c *Client) LatestSignature(ctx context.Context) (*poll.SignatureInfo, error) {
	ctx, cancel, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	limit := 1
	out, err := c.rpc.GetSignaturesForAddressWithOpts(ctx, c.program, &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: rpc.CommitmentFinalized,
	})
	if err != nil {
		return nil, fmt.Errorf("get signatures: %w", err)
	}
	if len(out) == 0 {
		return nil, nil
	}

	return &poll.SignatureInfo{
		Signature: out[0].Signature.String(),
		Slot:      out[0].Slot,
	}, nil
}

// SignaturesSince returns all finalized signatures for the tracked program
// strictly newer than until, most recent first.
func (c *Client) SignaturesSince(ctx context.Context, until string) ([]poll.SignatureInfo, error) {
	untilSig, err := solana.SignatureFromBase58(until)
	if err != nil {
		return nil, fmt.Errorf("invalid until signature %q: %w", until, err)
	}

	ctx, cancel, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	out, err := c.rpc.GetSignaturesForAddressWithOpts(ctx, c.program, &rpc.GetSignaturesForAddressOpts{
		Until:      untilSig,
		Commitment: rpc.CommitmentFinalized,
	})
	if err != nil {
		return nil, fmt.Errorf("get signatures: %w", err)
	}

	sigs := make([]poll.SignatureInfo, 0, len(out))
	for _, s := range out {
		sigs = append(sigs, poll.SignatureInfo{
			Signature: s.Signature.String(),
			Slot:      s.Slot,
		})
	}
	return sigs, nil
}

// Transaction returns the log output and status for one signature, or nil
// when the transaction is not (yet) available at finalized commitment.
func (c *Client) Transaction(ctx context.Context, signature string) (*poll.TransactionDetail, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("invalid signature %q: %w", signature, err)
	}

	ctx, cancel, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	maxVersion := uint64(0)
	res, err := c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Commitment:                     rpc.CommitmentFinalized,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			c.logger.Debug("transaction not available",
				zap.String("signature", signature))
			return nil, nil
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	if res == nil || res.Meta == nil {
		return nil, nil
	}

	return &poll.TransactionDetail{
		LogMessages: res.Meta.LogMessages,
		Failed:      res.Meta.Err != nil,
	}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() error {
	return c.rpc.Close()
}

// acquire waits for the rate limiter and attaches the per-call timeout.
func (c *Client) acquire(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, fmt.Errorf("rate limiter: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	return ctx, cancel, nil
}
