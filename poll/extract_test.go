package poll

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/0xvega/fillfeed/events"
)

func testKey(fill byte) solana.PublicKey {
	var k solana.PublicKey
	for i := range k {
		k[i] = fill
	}
	return k
}

// fillRecord builds the full wire record of a fill event: discriminator
// followed by the borsh payload.
func fillRecord(market solana.PublicKey) []byte {
	maker := testKey(2)
	taker := testKey(3)

	var buf bytes.Buffer
	buf.Write(events.FillLogDiscriminator[:])
	buf.Write(market[:])
	buf.Write(maker[:])
	buf.Write(taker[:])

	var tmp [8]byte
	for _, v := range []uint64{
		1500,                      // baseAtoms
		3000,                      // quoteAtoms
		1_000_000_000_000_000_000, // price lo (1.0)
		0,                         // price hi
		77,                        // makerSequenceNumber
		78,                        // takerSequenceNumber
	} {
		binary.LittleEndian.PutUint64(tmp[:], v)
		buf.Write(tmp[:])
	}
	buf.WriteByte(1) // takerIsBuy
	buf.WriteByte(0) // makerIsGlobal
	return buf.Bytes()
}

func dataLine(record []byte) string {
	return dataMarker + base64.StdEncoding.EncodeToString(record)
}

func newTestExtractor(t *testing.T, market string) (*Extractor, *Metrics) {
	t.Helper()
	metrics := NewMetrics(prometheus.NewRegistry())
	return NewExtractor(market, metrics, zap.NewNop()), metrics
}

func TestExtractFill(t *testing.T) {
	extractor, _ := newTestExtractor(t, "")
	sig := SignatureInfo{Signature: "sig-1", Slot: 42}

	detail := &TransactionDetail{
		LogMessages: []string{
			"Program 11111111111111111111111111111111 invoke [1]",
			dataLine(fillRecord(testKey(1))),
			"Program 11111111111111111111111111111111 success",
		},
	}

	out := extractor.Extract(detail, sig)
	require.Len(t, out, 1)

	fill, ok := out[0].(*events.FillEvent)
	require.True(t, ok, "expected *FillEvent, got %T", out[0])
	assert.Equal(t, testKey(1).String(), fill.Market)
	assert.Equal(t, "sig-1", fill.Signature)
	assert.Equal(t, uint64(42), fill.Slot)
}

func TestExtractSkipsUnusableTransactions(t *testing.T) {
	tests := []struct {
		name   string
		detail *TransactionDetail
		reason string
	}{
		{name: "unavailable", detail: nil, reason: SkipReasonUnavailable},
		{name: "no logs", detail: &TransactionDetail{}, reason: SkipReasonNoLogs},
		{
			name: "failed",
			detail: &TransactionDetail{
				LogMessages: []string{dataLine(fillRecord(testKey(1)))},
				Failed:      true,
			},
			reason: SkipReasonFailedTx,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			extractor, metrics := newTestExtractor(t, "")

			out := extractor.Extract(tt.detail, SignatureInfo{Signature: "sig", Slot: 1})

			assert.Empty(t, out)
			assert.Equal(t, float64(1),
				testutil.ToFloat64(metrics.TransactionsSkipped.WithLabelValues(tt.reason)))
		})
	}
}

func TestExtractIgnoresUnrelatedLines(t *testing.T) {
	extractor, _ := newTestExtractor(t, "")

	unknownTag := events.DiscriminatorFor("Unrelated")
	detail := &TransactionDetail{
		LogMessages: []string{
			"Program log: Instruction: Swap",
			"Program data: not-base64!!!",
			dataLine([]byte{1, 2, 3}), // shorter than a discriminator
			dataLine(append(append([]byte{}, unknownTag[:]...), 0, 0, 0)),
		},
	}

	out := extractor.Extract(detail, SignatureInfo{Signature: "sig", Slot: 1})
	assert.Empty(t, out)
}

func TestExtractDeduplicatesIdenticalLines(t *testing.T) {
	extractor, _ := newTestExtractor(t, "")

	line := dataLine(fillRecord(testKey(1)))
	detail := &TransactionDetail{
		LogMessages: []string{line, line, line},
	}

	out := extractor.Extract(detail, SignatureInfo{Signature: "sig", Slot: 1})
	assert.Len(t, out, 1)
}

func TestExtractPreservesLogOrder(t *testing.T) {
	extractor, _ := newTestExtractor(t, "")

	detail := &TransactionDetail{
		LogMessages: []string{
			dataLine(fillRecord(testKey(1))),
			dataLine(fillRecord(testKey(4))),
		},
	}

	out := extractor.Extract(detail, SignatureInfo{Signature: "sig", Slot: 1})
	require.Len(t, out, 2)
	assert.Equal(t, testKey(1).String(), out[0].MarketID())
	assert.Equal(t, testKey(4).String(), out[1].MarketID())
}

func TestExtractMarketFilter(t *testing.T) {
	tracked := testKey(1).String()
	extractor, _ := newTestExtractor(t, tracked)

	detail := &TransactionDetail{
		LogMessages: []string{
			dataLine(fillRecord(testKey(1))),
			dataLine(fillRecord(testKey(9))),
		},
	}

	out := extractor.Extract(detail, SignatureInfo{Signature: "sig", Slot: 1})
	require.Len(t, out, 1)
	assert.Equal(t, tracked, out[0].MarketID())
}

func TestExtractCountsMalformedPayloads(t *testing.T) {
	extractor, metrics := newTestExtractor(t, "")

	// Known tag, truncated body.
	record := fillRecord(testKey(1))[:20]
	detail := &TransactionDetail{
		LogMessages: []string{
			dataLine(record),
			dataLine(fillRecord(testKey(1))),
		},
	}

	out := extractor.Extract(detail, SignatureInfo{Signature: "sig", Slot: 1})

	// The malformed line is skipped, the good one still decodes.
	assert.Len(t, out, 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.DecodeFailures))
}
