package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	rc := NewRuntimeConfig(c)
	assert.InDelta(t, 7.0, rc.RoadYMax, 1e-12)
	assert.Equal(t, int32(150), rc.C.Step.Total)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	c, err := Load([]byte(`
control:
  step:
    total: 50
mpc:
  prediction_horizon: 10
  predict_others: false
solver:
  verbose: true
output:
  mongo:
    uri: mongodb://localhost:27017
    db: sim
    col: safelane
`))
	require.NoError(t, err)
	assert.Equal(t, int32(50), c.Control.Step.Total)
	assert.Equal(t, 0.2, c.Control.Step.Interval)
	assert.Equal(t, 10, c.MPC.PredictionHorizon)
	assert.Equal(t, 3, c.MPC.ControlHorizon)
	assert.False(t, c.MPC.PredictOthers)
	assert.True(t, c.Solver.Verbose)
	assert.Equal(t, 1e-3, c.Solver.ConstraintViolationTol)
	require.NotNil(t, c.Output.Mongo)
	assert.Equal(t, "safelane", c.Output.Mongo.Col)
}

func TestLoadEmptyUsesDefaults(t *testing.T) {
	c, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]string{
		"unknown field":    "mpc:\n  horizon: 3\n",
		"negative dt":      "control:\n  step:\n    interval: -0.1\n",
		"control horizon":  "mpc:\n  control_horizon: 30\n",
		"inverted bounds":  "mpc:\n  ax_min: 3\n",
		"tracking error":   "barrier:\n  tracking_error: 0.5\n",
		"no lanes":         "road:\n  num_lanes: 0\n",
		"zero iterations":  "solver:\n  max_iter: 0\n",
		"short prediction": "mpc:\n  prediction_horizon: 1\n  control_horizon: 1\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load([]byte(data))
			assert.Error(t, err)
		})
	}
	_, err := Load([]byte("road:\n  lane_width: 0\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
