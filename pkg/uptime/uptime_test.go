package uptime

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSince_AcrossWrap(t *testing.T) {
	then := uint32(math.MaxUint32 - 999)
	now := uint32(4000)

	assert.Equal(t, uint32(5000), Since(now, then))
	assert.True(t, Elapsed(now, then, 5000))
	assert.False(t, Elapsed(now, then, 5001))
}

func TestSince_WithoutWrap(t *testing.T) {
	assert.Equal(t, uint32(10000), Since(20000, 10000))
	assert.Equal(t, uint32(0), Since(7, 7))
}

func TestMonotonicClock_Advances(t *testing.T) {
	c := NewClock()
	start := c.Millis()
	time.Sleep(20 * time.Millisecond)
	assert.GreaterOrEqual(t, Since(c.Millis(), start), uint32(20))
}
