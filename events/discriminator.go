package events

import (
	"crypto/sha256"
	"encoding/hex"
)

// DiscriminatorLength is the size of the tag prefixing every emitted event
// record.
const DiscriminatorLength = 8

// Discriminator is the fixed-size tag identifying an event kind inside an
// opaque log payload.
type Discriminator [DiscriminatorLength]byte

// DiscriminatorFor derives the tag for a named event type. The derivation is
// the Anchor convention: the first 8 bytes of sha256("event:<Name>").
func DiscriminatorFor(name string) Discriminator {
	h := sha256.Sum256([]byte("event:" + name))
	var d Discriminator
	copy(d[:], h[:DiscriminatorLength])
	return d
}

// String returns the tag as lowercase hex.
func (d Discriminator) String() string {
	return hex.EncodeToString(d[:])
}

// Tags for the two event kinds the pipeline understands.
var (
	FillLogDiscriminator       = DiscriminatorFor("FillLog")
	PlaceOrderLogDiscriminator = DiscriminatorFor("PlaceOrderLog")
)

// KnownDiscriminators returns every tag the decoder can handle.
func KnownDiscriminators() []Discriminator {
	return []Discriminator{FillLogDiscriminator, PlaceOrderLogDiscriminator}
}
