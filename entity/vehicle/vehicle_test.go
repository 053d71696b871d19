package vehicle

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func newTestVehicle(t *testing.T, initial []float64) *Vehicle {
	t.Helper()
	v, err := New("ego", Ego, initial, 1, 0.5, 40)
	require.NoError(t, err)
	return v
}

func TestNewRejectsWrongDimension(t *testing.T) {
	for _, initial := range [][]float64{nil, {0, 0, 0}, {0, 0, 0, 0, 0, 0, 0}} {
		_, err := New("bad", Other, initial, 1, 0.5, 40)
		assert.True(t, errors.Is(err, ErrInvalidState), "%v", initial)
	}
	_, err := New("nan", Other, []float64{0, math.NaN(), 0, 0, 0, 0}, 1, 0.5, 40)
	assert.True(t, errors.Is(err, ErrInvalidState))
}

func TestAdvanceSemiImplicit(t *testing.T) {
	v := newTestVehicle(t, []float64{0, 1.75, 25, 0, 0, 0})
	v.Advance(2, 1, 0.2)
	s := v.State()
	// 位置使用更新后的速度
	assert.InDelta(t, 25.4, s.VX, 1e-12)
	assert.InDelta(t, 0.2, s.VY, 1e-12)
	assert.InDelta(t, 25.4*0.2, s.X, 1e-12)
	assert.InDelta(t, 1.75+0.2*0.2, s.Y, 1e-12)
	assert.Equal(t, 2.0, s.AX)
	assert.Equal(t, 1.0, s.AY)
	assert.Len(t, v.Trajectory(), 2)
}

func TestAdvanceClampsLongitudinalSpeed(t *testing.T) {
	v := newTestVehicle(t, []float64{0, 0, 1, 0, 0, 0})
	v.Advance(-100, 0, 0.2)
	assert.Equal(t, 0.0, v.State().VX)
	assert.Equal(t, 0.0, v.State().X)

	v.Advance(1e6, 0, 0.2)
	assert.Equal(t, 40.0, v.State().VX)
}

func TestAdvanceNeverLeavesSpeedBounds(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	v := newTestVehicle(t, []float64{0, 0, 20, 0, 0, 0})
	for range 1000 {
		ax := (r.Float64() - 0.5) * 200
		v.Advance(ax, 0, 0.2)
		vx := v.State().VX
		assert.GreaterOrEqual(t, vx, 0.0)
		assert.LessOrEqual(t, vx, 40.0)
	}
	assert.Len(t, v.Trajectory(), 1001)
}

// 横向速度沿用纵向速度的截断区间，负的横向加速度不会产生负的横向速度
func TestLateralSpeedSharesLongitudinalClamp(t *testing.T) {
	v := newTestVehicle(t, []float64{0, 5.25, 25, 0, 0, 0})
	v.Advance(0, -2, 0.2)
	assert.Equal(t, 0.0, v.State().VY)
	assert.Equal(t, 5.25, v.State().Y)

	v.Advance(0, 1e6, 0.2)
	assert.Equal(t, 40.0, v.State().VY)
}

func TestTrajectoryIsAppendOnlyCopy(t *testing.T) {
	v := newTestVehicle(t, []float64{0, 0, 10, 0, 0, 0})
	v.Advance(0, 0, 0.1)
	traj := v.Trajectory()
	traj[0].X = 1234
	assert.Equal(t, 0.0, v.Trajectory()[0].X)
}

func TestAdvancePrescribed(t *testing.T) {
	v, err := New("veh1", Other, []float64{180, 1.75, 28, 0, -4, 0}, 1, 0.5, 40)
	require.NoError(t, err)
	for range 50 {
		v.AdvancePrescribed(0.2)
	}
	// 28 m/s 以 -4 m/s² 减速，7秒后停车并保持
	assert.Equal(t, 0.0, v.State().VX)
	ax, ay := v.PrescribedAcceleration()
	assert.Equal(t, -4.0, ax)
	assert.Equal(t, 0.0, ay)
}
