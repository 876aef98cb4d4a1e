package blockcache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObserveWidensRangeInProcessOnly(t *testing.T) {
	c := New("testchain", nil)
	ctx := context.Background()

	_, ok := c.Max(ctx)
	assert.False(t, ok)

	c.Observe(ctx, 100)
	max, ok := c.Max(ctx)
	assert.True(t, ok)
	assert.Equal(t, int64(100), max)

	min, ok := c.Min(ctx)
	assert.True(t, ok)
	assert.Equal(t, int64(100), min)

	c.Observe(ctx, 50)
	min, _ = c.Min(ctx)
	assert.Equal(t, int64(50), min)
	max, _ = c.Max(ctx)
	assert.Equal(t, int64(100), max, "Observe never narrows an already-widened max")

	c.Observe(ctx, 150)
	max, _ = c.Max(ctx)
	assert.Equal(t, int64(150), max)
}
