package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscriminatorFor(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{name: "FillLog", want: "9617299498a2d740"},
		{name: "PlaceOrderLog", want: "7ba7835dba60174b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DiscriminatorFor(tt.name).String())
		})
	}
}

func TestDiscriminatorDeterminism(t *testing.T) {
	assert.Equal(t, DiscriminatorFor("FillLog"), DiscriminatorFor("FillLog"))
	assert.NotEqual(t, DiscriminatorFor("FillLog"), DiscriminatorFor("fillLog"))
}

func TestKnownDiscriminatorsDistinct(t *testing.T) {
	tags := KnownDiscriminators()
	require.Len(t, tags, 2)

	seen := make(map[Discriminator]bool)
	for _, tag := range tags {
		require.False(t, seen[tag], "duplicate tag %s", tag)
		seen[tag] = true
	}
}
