package poll

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/0xvega/fillfeed/events"
)

var (
	// ErrNoInitialSignature is returned when the remote source has no
	// history for the tracked program, so no starting cursor can be
	// derived.
	ErrNoInitialSignature = errors.New("program has no signatures")

	// ErrShutdownTimeout is returned by StopAndWait when the loop does not
	// reach STOPPED within the allowed time.
	ErrShutdownTimeout = errors.New("timed out waiting for poller to stop")
)

// SignatureInfo identifies one submitted transaction and the slot it landed
// in.
type SignatureInfo struct {
	Signature string
	Slot      uint64
}

// TransactionDetail is the subset of transaction data the pipeline inspects.
type TransactionDetail struct {
	LogMessages []string
	Failed      bool
}

// Client is the finality-aware ledger query interface consumed by the
// poller. The tracked program is fixed on the implementation.
type Client interface {
	// LatestSignature returns the most recent signature for the tracked
	// program, or nil when the program has no history.
	LatestSignature(ctx context.Context) (*SignatureInfo, error)

	// SignaturesSince returns all signatures strictly newer than until,
	// ordered most recent first.
	SignaturesSince(ctx context.Context, until string) ([]SignatureInfo, error)

	// Transaction returns the detail for one signature, or nil when the
	// transaction is not available.
	Transaction(ctx context.Context, signature string) (*TransactionDetail, error)
}

// Sink receives decoded events, one call per event, in emission order.
type Sink interface {
	Publish(ev events.Event)
}

// State is the lifecycle state of the poll loop.
type State int32

const (
	StateInit State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Config holds poller configuration.
type Config struct {
	// Interval is the delay between poll cycles.
	Interval time.Duration

	// DedupLimit is the high-water mark of the dedup window; after each
	// batch the window is trimmed to this many entries.
	DedupLimit int

	// Market optionally restricts dispatched events to a single market.
	Market string
}

// Validate validates the poller configuration.
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.DedupLimit <= 0 {
		return fmt.Errorf("dedup limit must be positive")
	}
	return nil
}

// Poller drives ingestion: it advances a cursor over the program's
// signature history, fetches each new transaction, extracts events and
// pushes them to the sink. All cursor and dedup state is owned by the Run
// goroutine; concurrent readers only touch the atomics.
type Poller struct {
	client    Client
	sink      Sink
	config    *Config
	extractor *Extractor
	logger    *zap.Logger
	metrics   *Metrics

	cursorSig  string
	cursorSlot uint64
	dedup      *DedupWindow

	state      atomic.Int32
	lastUpdate atomic.Int64 // unix nanoseconds of the last advancing batch

	stopOnce  sync.Once
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// New creates a Poller. The known discriminator tags are checked for
// distinctness here so a collision surfaces at startup rather than as
// silent misclassification.
func New(client Client, sink Sink, config *Config, metrics *Metrics, logger *zap.Logger) (*Poller, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid poller config: %w", err)
	}

	tags := events.KnownDiscriminators()
	seen := make(map[events.Discriminator]bool, len(tags))
	for _, tag := range tags {
		if seen[tag] {
			return nil, fmt.Errorf("discriminator collision on %s", tag)
		}
		seen[tag] = true
	}

	return &Poller{
		client:    client,
		sink:      sink,
		config:    config,
		extractor: NewExtractor(config.Market, metrics, logger),
		logger:    logger,
		metrics:   metrics,
		dedup:     NewDedupWindow(),
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}, nil
}

// State returns the current lifecycle state.
func (p *Poller) State() State {
	return State(p.state.Load())
}

// Cursor returns the last processed signature and slot.
func (p *Poller) Cursor() (string, uint64) {
	return p.cursorSig, p.cursorSlot
}

// LastUpdate returns the time of the last batch that advanced the cursor,
// or the zero time before the first one. Safe for concurrent use.
func (p *Poller) LastUpdate() time.Time {
	ns := p.lastUpdate.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Run executes the poll loop until the context is cancelled or Stop is
// requested. Errors from the remote source or the initial cursor derivation
// propagate to the caller; recovery is the supervisor's job.
func (p *Poller) Run(ctx context.Context) error {
	defer func() {
		p.state.Store(int32(StateStopped))
		close(p.stoppedCh)
		p.logger.Info("poller stopped",
			zap.String("cursor_signature", p.cursorSig),
			zap.Uint64("cursor_slot", p.cursorSlot),
		)
	}()

	if err := p.init(ctx); err != nil {
		return err
	}

	p.state.Store(int32(StateRunning))
	p.logger.Info("poller running",
		zap.Duration("interval", p.config.Interval),
		zap.String("cursor_signature", p.cursorSig),
		zap.Uint64("cursor_slot", p.cursorSlot),
	)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	// First cycle runs immediately rather than waiting out the interval.
	if err := p.pollOnce(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stopCh:
			return nil
		case <-ticker.C:
			if err := p.pollOnce(ctx); err != nil {
				return err
			}
		}
	}
}

// Stop requests a cooperative stop. The loop finishes its current batch
// before acknowledging. Safe to call multiple times and from any goroutine.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		p.state.CompareAndSwap(int32(StateRunning), int32(StateStopping))
		close(p.stopCh)
	})
}

// StopAndWait requests a stop and blocks until the loop reaches STOPPED or
// the timeout elapses, in which case ErrShutdownTimeout is returned and the
// loop's state is left unchanged. It does not cancel in-flight remote
// calls.
func (p *Poller) StopAndWait(timeout time.Duration) error {
	p.Stop()
	select {
	case <-p.stoppedCh:
		return nil
	case <-time.After(timeout):
		return ErrShutdownTimeout
	}
}

// init derives the starting cursor from the program's most recent
// signature.
func (p *Poller) init(ctx context.Context) error {
	latest, err := p.client.LatestSignature(ctx)
	if err != nil {
		return fmt.Errorf("initial signature: %w", err)
	}
	if latest == nil {
		return ErrNoInitialSignature
	}

	p.cursorSig = latest.Signature
	p.cursorSlot = latest.Slot
	p.logger.Info("initial cursor derived",
		zap.String("signature", latest.Signature),
		zap.Uint64("slot", latest.Slot),
	)
	return nil
}

// pollOnce runs a single cycle: list signatures newer than the cursor,
// process them oldest first, then advance the cursor and trim the dedup
// window.
func (p *Poller) pollOnce(ctx context.Context) error {
	sigs, err := p.client.SignaturesSince(ctx, p.cursorSig)
	if err != nil {
		return fmt.Errorf("list signatures: %w", err)
	}
	p.metrics.PollCycles.Inc()

	if len(sigs) == 0 {
		p.logger.Debug("no new signatures",
			zap.String("cursor_signature", p.cursorSig),
		)
		return nil
	}

	// The source returns most recent first; process oldest first.
	for i, j := 0, len(sigs)-1; i < j; i, j = i+1, j-1 {
		sigs[i], sigs[j] = sigs[j], sigs[i]
	}

	var last *SignatureInfo
	for i := range sigs {
		sig := sigs[i]

		if p.dedup.Contains(sig.Signature) {
			p.metrics.TransactionsSkipped.WithLabelValues(SkipReasonDuplicate).Inc()
			p.logger.Debug("skipping duplicate signature",
				zap.String("signature", sig.Signature),
			)
			continue
		}
		if sig.Slot < p.cursorSlot {
			p.metrics.TransactionsSkipped.WithLabelValues(SkipReasonStaleSlot).Inc()
			p.logger.Debug("skipping out-of-order signature",
				zap.String("signature", sig.Signature),
				zap.Uint64("slot", sig.Slot),
				zap.Uint64("cursor_slot", p.cursorSlot),
			)
			continue
		}

		p.dedup.Add(sig.Signature)
		if err := p.processSignature(ctx, sig); err != nil {
			// Drop the marker so a retried cycle can reprocess it.
			p.dedup.Remove(sig.Signature)
			return err
		}
		last = &sigs[i]
	}

	if last != nil {
		p.cursorSig = last.Signature
		p.cursorSlot = last.Slot
		p.lastUpdate.Store(time.Now().UnixNano())
		p.metrics.LastUpdate.SetToCurrentTime()
		p.logger.Info("batch processed",
			zap.Int("signatures", len(sigs)),
			zap.String("cursor_signature", p.cursorSig),
			zap.Uint64("cursor_slot", p.cursorSlot),
		)
	}
	p.dedup.Trim(p.config.DedupLimit)

	return nil
}

// processSignature fetches one transaction, extracts its events and
// publishes them in log order.
func (p *Poller) processSignature(ctx context.Context, sig SignatureInfo) error {
	detail, err := p.client.Transaction(ctx, sig.Signature)
	if err != nil {
		return fmt.Errorf("fetch transaction %s: %w", sig.Signature, err)
	}

	for _, ev := range p.extractor.Extract(detail, sig) {
		p.sink.Publish(ev)
		p.logger.Info("event dispatched",
			zap.String("type", string(ev.EventType())),
			zap.String("market", ev.MarketID()),
			zap.String("signature", sig.Signature),
			zap.Uint64("slot", sig.Slot),
		)
	}
	p.metrics.SignaturesProcessed.Inc()
	return nil
}
