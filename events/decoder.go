package events

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

var (
	// ErrMalformedPayload is returned when a payload under a known tag does
	// not match the expected layout.
	ErrMalformedPayload = errors.New("malformed event payload")

	// ErrUnknownDiscriminator is returned when the tag matches no known
	// event kind.
	ErrUnknownDiscriminator = errors.New("unknown event discriminator")
)

// priceDecimals is the fixed-point scale of on-chain prices: prices are
// encoded as u128 quote-atoms-per-base-atom scaled by 10^18.
const priceDecimals = 18

// fillLog is the wire layout of a FillLog record, borsh-encoded after the
// 8-byte discriminator.
type fillLog struct {
	Market              solana.PublicKey
	Maker               solana.PublicKey
	Taker               solana.PublicKey
	BaseAtoms           uint64
	QuoteAtoms          uint64
	Price               bin.Uint128
	MakerSequenceNumber uint64
	TakerSequenceNumber uint64
	TakerIsBuy          bool
	MakerIsGlobal       bool
}

// placeOrderLog is the wire layout of a PlaceOrderLog record.
type placeOrderLog struct {
	Market              solana.PublicKey
	Trader              solana.PublicKey
	BaseAtoms           uint64
	Price               bin.Uint128
	OrderSequenceNumber uint64
	OrderIndex          uint32
	LastValidSlot       uint32
	OrderType           uint8
	IsBid               bool
}

// Decode deserializes the payload following an 8-byte tag into a typed
// event. The signature and slot are attached as provenance. Payloads that
// are truncated, carry trailing bytes, or otherwise fail to parse return
// ErrMalformedPayload; tags outside the known set return
// ErrUnknownDiscriminator.
func Decode(tag Discriminator, payload []byte, signature string, slot uint64) (Event, error) {
	switch tag {
	case FillLogDiscriminator:
		var raw fillLog
		if err := decodeExact(payload, &raw); err != nil {
			return nil, fmt.Errorf("fill: %w", err)
		}
		return &FillEvent{
			Market:              raw.Market.String(),
			Maker:               raw.Maker.String(),
			Taker:               raw.Taker.String(),
			BaseAtoms:           strconv.FormatUint(raw.BaseAtoms, 10),
			QuoteAtoms:          strconv.FormatUint(raw.QuoteAtoms, 10),
			Price:               fixedPointString(raw.Price),
			MakerSequenceNumber: raw.MakerSequenceNumber,
			TakerSequenceNumber: raw.TakerSequenceNumber,
			TakerIsBuy:          raw.TakerIsBuy,
			MakerIsGlobal:       raw.MakerIsGlobal,
			Signature:           signature,
			Slot:                slot,
		}, nil

	case PlaceOrderLogDiscriminator:
		var raw placeOrderLog
		if err := decodeExact(payload, &raw); err != nil {
			return nil, fmt.Errorf("placeOrder: %w", err)
		}
		return &PlaceOrderEvent{
			Market:              raw.Market.String(),
			Trader:              raw.Trader.String(),
			BaseAtoms:           strconv.FormatUint(raw.BaseAtoms, 10),
			Price:               fixedPointString(raw.Price),
			OrderSequenceNumber: raw.OrderSequenceNumber,
			OrderIndex:          raw.OrderIndex,
			LastValidSlot:       raw.LastValidSlot,
			OrderType:           raw.OrderType,
			IsBid:               raw.IsBid,
			Signature:           signature,
			Slot:                slot,
		}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDiscriminator, tag)
	}
}

// decodeExact borsh-decodes payload into dst and requires the payload to be
// fully consumed.
func decodeExact(payload []byte, dst interface{}) error {
	dec := bin.NewBorshDecoder(payload)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if remaining := dec.Remaining(); remaining > 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrMalformedPayload, remaining)
	}
	return nil
}

// fixedPointString converts an 18-decimal fixed-point u128 into a decimal
// string without precision loss. Trailing fractional zeros are dropped.
func fixedPointString(v bin.Uint128) string {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(priceDecimals), nil)
	whole, frac := new(big.Int).QuoRem(v.BigInt(), scale, new(big.Int))

	fracStr := strings.TrimRight(fmt.Sprintf("%0*s", priceDecimals, frac.String()), "0")
	if fracStr == "" {
		return whole.String()
	}
	return whole.String() + "." + fracStr
}
