package poll

import (
	"encoding/base64"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/0xvega/fillfeed/events"
)

// dataMarker prefixes log lines carrying base64-encoded event records.
const dataMarker = "Program data: "

// Skip reasons for the transactions_skipped_total metric.
const (
	SkipReasonDuplicate   = "duplicate"
	SkipReasonStaleSlot   = "stale_slot"
	SkipReasonUnavailable = "unavailable"
	SkipReasonNoLogs      = "no_logs"
	SkipReasonFailedTx    = "failed_tx"
)

// Extractor turns a transaction's log output into decoded events. Lines
// without the data marker, payloads with unknown tags and malformed
// payloads are all tolerated; on-chain log output is noisy by nature.
type Extractor struct {
	market  string
	metrics *Metrics
	logger  *zap.Logger
}

// NewExtractor creates an Extractor. A non-empty market restricts the
// output to events of that market.
func NewExtractor(market string, metrics *Metrics, logger *zap.Logger) *Extractor {
	return &Extractor{
		market:  market,
		metrics: metrics,
		logger:  logger,
	}
}

// Extract returns the events embedded in one transaction, in log order.
// Unavailable, log-less and failed transactions yield no events and no
// error. Identical data lines within the same transaction are deduplicated.
func (e *Extractor) Extract(detail *TransactionDetail, sig SignatureInfo) []events.Event {
	switch {
	case detail == nil:
		e.skipTransaction(SkipReasonUnavailable, sig)
		return nil
	case len(detail.LogMessages) == 0:
		e.skipTransaction(SkipReasonNoLogs, sig)
		return nil
	case detail.Failed:
		e.skipTransaction(SkipReasonFailedTx, sig)
		return nil
	}

	var out []events.Event
	seenLines := make(map[string]struct{})

	for _, line := range detail.LogMessages {
		if !strings.HasPrefix(line, dataMarker) {
			continue
		}
		if _, dup := seenLines[line]; dup {
			continue
		}
		seenLines[line] = struct{}{}

		if ev := e.decodeLine(strings.TrimPrefix(line, dataMarker), sig); ev != nil {
			out = append(out, ev)
		}
	}
	return out
}

// decodeLine decodes one data line into an event, or nil when the line is
// not a known, well-formed, matching event record.
func (e *Extractor) decodeLine(encoded string, sig SignatureInfo) events.Event {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		e.logger.Debug("skipping undecodable data line",
			zap.String("signature", sig.Signature),
			zap.Error(err),
		)
		return nil
	}
	if len(raw) < events.DiscriminatorLength {
		return nil
	}

	var tag events.Discriminator
	copy(tag[:], raw[:events.DiscriminatorLength])

	ev, err := events.Decode(tag, raw[events.DiscriminatorLength:], sig.Signature, sig.Slot)
	if err != nil {
		if errors.Is(err, events.ErrUnknownDiscriminator) {
			// Records from instructions we do not track.
			return nil
		}
		// Malformed payload under a known tag: skip the line, keep the
		// loop alive.
		e.metrics.DecodeFailures.Inc()
		e.logger.Warn("skipping malformed event payload",
			zap.String("signature", sig.Signature),
			zap.Uint64("slot", sig.Slot),
			zap.String("tag", tag.String()),
			zap.Error(err),
		)
		return nil
	}

	if e.market != "" && ev.MarketID() != e.market {
		e.logger.Debug("skipping event for untracked market",
			zap.String("market", ev.MarketID()),
			zap.String("signature", sig.Signature),
		)
		return nil
	}

	e.metrics.EventsDecoded.WithLabelValues(string(ev.EventType())).Inc()
	return ev
}

func (e *Extractor) skipTransaction(reason string, sig SignatureInfo) {
	e.metrics.TransactionsSkipped.WithLabelValues(reason).Inc()
	e.logger.Debug("skipping transaction",
		zap.String("signature", sig.Signature),
		zap.Uint64("slot", sig.Slot),
		zap.String("reason", reason),
	)
}
