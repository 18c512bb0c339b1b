package events

// Type identifies the kind of a decoded event. The value doubles as the
// "type" discriminant in the JSON pushed to live listeners.
type Type string

const (
	// TypeFill is emitted when a resting order is matched.
	TypeFill Type = "fill"

	// TypePlaceOrder is emitted when a new order is placed on a market.
	TypePlaceOrder Type = "placeOrder"
)

// Event is a decoded, immutable event record. Quantities are decimal strings
// so consumers never overflow, and every event carries its provenance.
type Event interface {
	// EventType returns the kind discriminant for this event.
	EventType() Type

	// MarketID returns the market the event belongs to.
	MarketID() string
}

// FillEvent records a match between a taker and a resting maker order.
type FillEvent struct {
	Market              string `json:"market"`
	Maker               string `json:"maker"`
	Taker               string `json:"taker"`
	BaseAtoms           string `json:"baseAtoms"`
	QuoteAtoms          string `json:"quoteAtoms"`
	Price               string `json:"price"`
	MakerSequenceNumber uint64 `json:"makerSequenceNumber"`
	TakerSequenceNumber uint64 `json:"takerSequenceNumber"`
	TakerIsBuy          bool   `json:"takerIsBuy"`
	MakerIsGlobal       bool   `json:"makerIsGlobal"`
	Signature           string `json:"signature"`
	Slot                uint64 `json:"slot"`
}

// EventType implements Event.
func (e *FillEvent) EventType() Type { return TypeFill }

// MarketID implements Event.
func (e *FillEvent) MarketID() string { return e.Market }

// PlaceOrderEvent records a new resting order on a market.
type PlaceOrderEvent struct {
	Market              string `json:"market"`
	Trader              string `json:"trader"`
	BaseAtoms           string `json:"baseAtoms"`
	Price               string `json:"price"`
	OrderSequenceNumber uint64 `json:"orderSequenceNumber"`
	OrderIndex          uint32 `json:"orderIndex"`
	LastValidSlot       uint32 `json:"lastValidSlot"`
	OrderType           uint8  `json:"orderType"`
	IsBid               bool   `json:"isBid"`
	Signature           string `json:"signature"`
	Slot                uint64 `json:"slot"`
}

// EventType implements Event.
func (e *PlaceOrderEvent) EventType() Type { return TypePlaceOrder }

// MarketID implements Event.
func (e *PlaceOrderEvent) MarketID() string { return e.Market }
