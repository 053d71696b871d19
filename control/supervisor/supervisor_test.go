package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/safelane-sim/entity/vehicle"
	"github.com/tsinghua-fib-lab/safelane-sim/utils/config"
	"golang.org/x/exp/rand"
)

func newTestSupervisor() *Supervisor {
	return New(config.Supervisor{
		TTC:              2,
		TIV:              4,
		ProgressStep:     2,
		AdjacentLaneGap:  3.5,
		StopSpeed:        0.1,
		EmergencyAhead:   5,
		EmergencyLateral: 1,
	})
}

func TestClassify(t *testing.T) {
	s := newTestSupervisor()
	ego := vehicle.State{X: 100, Y: 1.75, VX: 25}
	sit := s.Classify(ego, []vehicle.State{
		{X: 180, Y: 1.75},  // 同车道前车
		{X: 150, Y: 2.0},   // 更近的同车道前车
		{X: 90, Y: 1.75},   // 同车道后车
		{X: 110, Y: 5.25},  // 相邻车道
		{X: 300, Y: -1.75}, // 另一侧相邻车道，距离过远
	})
	assert.False(t, sit.Emergency)
	assert.True(t, sit.HasFront)
	assert.Equal(t, 50.0, sit.FrontDistance)
	assert.True(t, sit.AdjacentBlocked)

	sit = s.Classify(ego, []vehicle.State{{X: 103, Y: 2.5}})
	assert.True(t, sit.Emergency)
	assert.False(t, sit.HasFront)

	sit = s.Classify(ego, []vehicle.State{{X: 70, Y: 5.25}, {X: 160, Y: 5.25}})
	assert.False(t, sit.AdjacentBlocked)
	assert.False(t, sit.HasFront)
}

func TestTransitionTable(t *testing.T) {
	s := newTestSupervisor()
	const vx = 25.0 // s_f = 100, s_long = 50
	front := func(d float64) Situation { return Situation{HasFront: true, FrontDistance: d} }
	blocked := func(sit Situation) Situation { sit.AdjacentBlocked = true; return sit }
	emergency := Situation{Emergency: true, HasFront: true, FrontDistance: 3}

	cases := []struct {
		name       string
		from       Mode
		sit        Situation
		vx         float64
		want       State
		laneChange int
		brake      int
		progress   float64
	}{
		{"lk emergency", Initial(), emergency, vx, EmergencyBraking, 0, 0, 0},
		{"lk free lane", Mode{State: LaneKeeping, Progress: 30, Brake: 1}, front(80), vx, LaneChange, 1, 1, 0},
		{"lk blocked close", Initial(), blocked(front(40)), vx, Braking, 0, 0, 0},
		{"lk blocked far", Initial(), blocked(front(80)), vx, Following, 0, 1, 0},
		{"lk nothing", Initial(), front(150), vx, LaneKeeping, 0, 1, 0},
		{"lk empty", Initial(), Situation{}, vx, LaneKeeping, 0, 1, 0},

		{"lc emergency", Mode{State: LaneChange, Progress: 10, LaneChange: 1, Brake: 1}, emergency, vx, EmergencyBraking, 0, 0, 12},
		{"lc abort", Mode{State: LaneChange, Progress: 10, LaneChange: 1, Brake: 1}, blocked(Situation{}), vx, AbortLaneChange, -1, 1, 12},
		{"lc blocked late", Mode{State: LaneChange, Progress: 48, LaneChange: 1, Brake: 1}, blocked(Situation{}), vx, LaneChange, 1, 1, 50},
		{"lc done", Mode{State: LaneChange, Progress: 98, LaneChange: 1, Brake: 1}, Situation{}, vx, LaneKeeping, 0, 1, 0},
		{"lc continue", Mode{State: LaneChange, Progress: 20, LaneChange: 1, Brake: 1}, front(10), vx, LaneChange, 1, 1, 22},

		{"abort continue", Mode{State: AbortLaneChange, Progress: 10, LaneChange: -1, Brake: 1}, emergency, vx, AbortLaneChange, -1, 1, 8},
		{"abort done", Mode{State: AbortLaneChange, Progress: 2, LaneChange: -1, Brake: 1}, Situation{}, vx, LaneKeeping, 0, 1, 0},

		{"follow emergency", Mode{State: Following, Brake: 1}, emergency, vx, EmergencyBraking, 0, 0, 0},
		{"follow gone", Mode{State: Following, Brake: 1}, Situation{}, vx, LaneKeeping, 0, 1, 0},
		{"follow far", Mode{State: Following, Brake: 1}, front(120), vx, LaneKeeping, 0, 1, 0},
		{"follow close", Mode{State: Following, Brake: 1}, front(30), vx, Braking, 0, 0, 0},
		{"follow keep", Mode{State: Following, Brake: 1}, front(70), vx, Following, 0, 1, 0},

		{"brake emergency", Mode{State: Braking}, emergency, vx, EmergencyBraking, 0, 0, 0},
		{"brake gone", Mode{State: Braking}, Situation{}, vx, Following, 0, 1, 0},
		{"brake released", Mode{State: Braking}, front(60), vx, Following, 0, 1, 0},
		{"brake keep", Mode{State: Braking}, front(30), vx, Braking, 0, 0, 0},

		{"eb moving", Mode{State: EmergencyBraking}, Situation{}, 0.5, EmergencyBraking, 0, 0, 0},
		{"eb stopped", Mode{State: EmergencyBraking}, emergency, 0.05, LaneKeeping, 0, 1, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := s.Transition(c.from, c.sit, c.vx)
			assert.Equal(t, c.want, got.State)
			assert.Equal(t, c.laneChange, got.LaneChange)
			assert.Equal(t, c.brake, got.Brake)
			assert.InDelta(t, c.progress, got.Progress, 1e-12)
		})
	}
}

func TestTransitionDeterministicAndTotal(t *testing.T) {
	s := newTestSupervisor()
	r := rand.New(rand.NewSource(42))
	for range 5000 {
		m := Mode{
			State:      States[r.Intn(len(States))],
			Progress:   float64(r.Intn(51) * 2),
			LaneChange: r.Intn(3) - 1,
			Brake:      r.Intn(2),
		}
		sit := Situation{
			Emergency:       r.Intn(4) == 0,
			HasFront:        r.Intn(2) == 0,
			FrontDistance:   r.Float64() * 200,
			AdjacentBlocked: r.Intn(2) == 0,
		}
		vx := r.Float64() * 40
		first := s.Transition(m, sit, vx)
		second := s.Transition(m, sit, vx)
		assert.Equal(t, first, second)
		assert.Contains(t, States, first.State)
		assert.GreaterOrEqual(t, first.Progress, 0.0)
		assert.LessOrEqual(t, first.Progress, 100.0)
		assert.Contains(t, []int{-1, 0, 1}, first.LaneChange)
		assert.Contains(t, []int{0, 1}, first.Brake)
	}
}

func TestEmergencyBrakingHoldsUntilStop(t *testing.T) {
	s := newTestSupervisor()
	m := s.Transition(Initial(), Situation{Emergency: true}, 20)
	require.Equal(t, EmergencyBraking, m.State)
	r := rand.New(rand.NewSource(1))
	for vx := 20.0; vx >= 0.1; vx -= 0.5 {
		sit := Situation{
			Emergency:       r.Intn(2) == 0,
			HasFront:        r.Intn(2) == 0,
			FrontDistance:   r.Float64() * 100,
			AdjacentBlocked: r.Intn(2) == 0,
		}
		m = s.Transition(m, sit, vx)
		assert.Equal(t, EmergencyBraking, m.State)
		assert.Equal(t, BrakeForced, m.Brake)
	}
	m = s.Transition(m, Situation{}, 0.09)
	assert.Equal(t, LaneKeeping, m.State)
	assert.Equal(t, BrakeNormal, m.Brake)
}

func TestEvaluateDoesNotMutateInput(t *testing.T) {
	s := newTestSupervisor()
	m := Mode{State: LaneChange, Progress: 10, LaneChange: 1, Brake: 1}
	next := s.Evaluate(m, vehicle.State{VX: 25}, nil)
	assert.Equal(t, 10.0, m.Progress)
	assert.Equal(t, 12.0, next.Progress)
}

func mustVehicle(t *testing.T, id string, role vehicle.Role, s []float64) *vehicle.Vehicle {
	t.Helper()
	v, err := vehicle.New(id, role, s, 1, 0.5, 40)
	require.NoError(t, err)
	return v
}

func states(vs []*vehicle.Vehicle) []vehicle.State {
	out := make([]vehicle.State, len(vs))
	for i, v := range vs {
		out[i] = v.State()
	}
	return out
}

// 前车进入危险区且相邻车道空闲：应在危险区被突破的那个周期进入变道
func TestScenarioOvertakeWithFreeLane(t *testing.T) {
	s := newTestSupervisor()
	const dt = 0.2
	ego := mustVehicle(t, "ego", vehicle.Ego, []float64{0, 1.75, 25, 0, 0, 0})
	others := []*vehicle.Vehicle{
		mustVehicle(t, "veh1", vehicle.Other, []float64{180, 1.75, 28, 0, -4, 0}),
		mustVehicle(t, "veh2", vehicle.Other, []float64{250, 5.25, 31, 0, 0, 0}),
	}
	m := Initial()
	reached := false
	for step := 0; step < 150 && !reached; step++ {
		sit := s.Classify(ego.State(), states(others))
		m = s.Evaluate(m, ego.State(), states(others))
		if sit.HasFront && sit.FrontDistance < s.DangerDistance(ego.State().VX) {
			assert.False(t, sit.AdjacentBlocked)
			assert.Equal(t, LaneChange, m.State, "step %d", step)
			assert.Greater(t, sit.FrontDistance, 0.0)
			reached = true
		} else {
			assert.Equal(t, LaneKeeping, m.State, "step %d", step)
		}
		ego.Advance(0, 0, dt)
		for _, o := range others {
			o.AdvancePrescribed(dt)
		}
	}
	assert.True(t, reached)
}

// 前车较近且相邻车道被占：只要占用条件成立，车道保持/跟车/制动不会切换到变道
func TestScenarioBlockedAdjacentLane(t *testing.T) {
	s := newTestSupervisor()
	const dt = 0.2
	ego := mustVehicle(t, "ego", vehicle.Ego, []float64{0, 1.75, 30, 0, 0, 0})
	others := []*vehicle.Vehicle{
		mustVehicle(t, "veh1", vehicle.Other, []float64{100, 1.75, 18, 0, 0, 0}),
		mustVehicle(t, "veh2", vehicle.Other, []float64{-50, 5.25, 36, 0, 0, 0}),
	}
	// 相邻车辆追近后再做决策
	for others[1].State().X-ego.State().X <= -15 {
		ego.Advance(0, 0, dt)
		for _, o := range others {
			o.AdvancePrescribed(dt)
		}
	}
	checked := 0
	m := Initial()
	for range 10 {
		sit := s.Classify(ego.State(), states(others))
		if !sit.AdjacentBlocked {
			break
		}
		prev := m
		m = s.Evaluate(m, ego.State(), states(others))
		if prev.State != LaneChange {
			assert.NotEqual(t, LaneChange, m.State)
		}
		if prev.State == LaneKeeping && sit.HasFront && sit.FrontDistance < s.DangerDistance(ego.State().VX) {
			assert.Contains(t, []State{Braking, Following}, m.State)
			checked++
		}
		ego.Advance(0, 0, dt)
		for _, o := range others {
			o.AdvancePrescribed(dt)
		}
	}
	assert.Positive(t, checked)
}
