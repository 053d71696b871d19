package road

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/safelane-sim/utils/config"
)

func TestLaneCenters(t *testing.T) {
	r := New(config.Road{YMin: 0, NumLanes: 2, LaneWidth: 3.5})
	assert.Equal(t, 2, r.NumLanes())
	assert.InDelta(t, 7.0, r.YMax(), 1e-12)

	c0, err := r.LaneCenter(0)
	require.NoError(t, err)
	assert.InDelta(t, 1.75, c0, 1e-12)
	c1, err := r.LaneCenter(1)
	require.NoError(t, err)
	assert.InDelta(t, 5.25, c1, 1e-12)
	assert.InDelta(t, 3.5, c1-c0, 1e-12)
}

func TestLaneCenterOutOfRange(t *testing.T) {
	r := New(config.Road{YMin: 0, NumLanes: 2, LaneWidth: 1.5})
	for _, idx := range []int{-1, 2, 10} {
		_, err := r.LaneCenter(idx)
		assert.True(t, errors.Is(err, ErrLaneOutOfRange), "index %d", idx)
	}
}

func TestLaneOf(t *testing.T) {
	r := New(config.Road{YMin: 0, NumLanes: 3, LaneWidth: 3.5})
	assert.Equal(t, 0, r.LaneOf(1.75))
	assert.Equal(t, 1, r.LaneOf(3.6))
	assert.Equal(t, 2, r.LaneOf(100))
	assert.Equal(t, 0, r.LaneOf(-4))
}
