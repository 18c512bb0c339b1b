package dispatch

import (
	"go.uber.org/zap"

	"github.com/0xvega/fillfeed/events"
)

// Sink counts dispatched events. Injected rather than global so tests and
// alternate backends can swap it out.
type Sink interface {
	// RecordFill increments the fill counter for one decoded fill.
	RecordFill(market string, makerIsGlobal, takerIsBuy bool)
}

// Broadcaster pushes a typed event payload to all connected live
// listeners. Delivery is best effort; the implementation must never block
// the caller.
type Broadcaster interface {
	Broadcast(eventType string, data interface{})
}

// Dispatcher fans decoded events out to the metrics sink and the live
// listeners.
type Dispatcher struct {
	sink   Sink
	hub    Broadcaster
	logger *zap.Logger
}

// New creates a Dispatcher.
func New(sink Sink, hub Broadcaster, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		sink:   sink,
		hub:    hub,
		logger: logger,
	}
}

// Publish delivers one event: fills increment the labeled counter, and
// every event is broadcast to the listeners with its type discriminant.
func (d *Dispatcher) Publish(ev events.Event) {
	if fill, ok := ev.(*events.FillEvent); ok {
		d.sink.RecordFill(fill.Market, fill.MakerIsGlobal, fill.TakerIsBuy)
	}

	d.hub.Broadcast(string(ev.EventType()), ev)
	d.logger.Debug("event published",
		zap.String("type", string(ev.EventType())),
		zap.String("market", ev.MarketID()),
	)
}
