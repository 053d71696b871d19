package plot

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/safelane-sim/entity/road"
	"github.com/tsinghua-fib-lab/safelane-sim/output/trajectory"
	"github.com/tsinghua-fib-lab/safelane-sim/utils/config"
)

func TestRender(t *testing.T) {
	l := trajectory.New("test", 0.2)
	for i := range 20 {
		l.Records = append(l.Records, trajectory.Record{
			Step:  int32(i + 1),
			T:     float64(i+1) * 0.2,
			EgoX:  float64(i) * 5,
			EgoY:  1.75 + float64(i)*0.1,
			EgoVX: 25,
			Others: map[string]trajectory.OtherRecord{
				"veh1": {X: 100 + float64(i)*4, Y: 1.75, VX: 20},
			},
		})
	}
	dir := filepath.Join(t.TempDir(), "plots")
	files, err := Render(dir, l, road.New(config.Default().Road), 1.75)
	require.NoError(t, err)
	require.Len(t, files, 4)
	for _, f := range files {
		fh, err := os.Open(f)
		require.NoError(t, err)
		cfg, err := png.DecodeConfig(fh)
		fh.Close()
		require.NoError(t, err, f)
		assert.Equal(t, 10*dpi, cfg.Width)
		assert.Equal(t, 4*dpi, cfg.Height)
	}
}

func TestRenderEmpty(t *testing.T) {
	_, err := Render(t.TempDir(), trajectory.New("empty", 0.2), road.New(config.Default().Road), 0)
	assert.ErrorIs(t, err, ErrEmptyLog)
}
