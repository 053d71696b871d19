// Package plot 将轨迹日志绘制为PNG图片
package plot

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tsinghua-fib-lab/safelane-sim/entity/road"
	"github.com/tsinghua-fib-lab/safelane-sim/output/trajectory"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

const dpi = 150

// ErrEmptyLog 轨迹日志中没有记录
var ErrEmptyLog = errors.New("plot: empty trajectory log")

type series struct {
	name string
	xys  plotter.XYs
}

// Render 绘制全部结果图
// 功能：横向位置、速度、加速度随时间变化曲线与道路俯视轨迹图
// 参数：dir-输出目录，l-轨迹日志，r-道路，yRef-参考横向位置
// 返回：生成的文件路径
func Render(dir string, l *trajectory.Log, r *road.Road, yRef float64) ([]string, error) {
	if len(l.Records) == 0 {
		return nil, ErrEmptyLog
	}
	ids := l.OtherIDs()
	t := func(i int) float64 { return l.Records[i].T }

	lateral := []series{
		{"ego", xys(l, t, func(rec trajectory.Record) (float64, bool) { return rec.EgoY, true })},
		{"reference", plotter.XYs{{X: l.Records[0].T, Y: yRef}, {X: l.Records[len(l.Records)-1].T, Y: yRef}}},
	}
	speed := []series{{"ego", xys(l, t, func(rec trajectory.Record) (float64, bool) { return rec.EgoVX, true })}}
	topView := []series{{"ego", xys(l,
		func(i int) float64 { return l.Records[i].EgoX },
		func(rec trajectory.Record) (float64, bool) { return rec.EgoY, true })}}
	for _, id := range ids {
		speed = append(speed, series{id, xys(l, t, func(rec trajectory.Record) (float64, bool) {
			o, ok := rec.Others[id]
			return o.VX, ok
		})})
		lateral = append(lateral, series{id, xys(l, t, func(rec trajectory.Record) (float64, bool) {
			o, ok := rec.Others[id]
			return o.Y, ok
		})})
		topView = append(topView, series{id, xys(l,
			func(i int) float64 { return l.Records[i].Others[id].X },
			func(rec trajectory.Record) (float64, bool) {
				o, ok := rec.Others[id]
				return o.Y, ok
			})})
	}
	accel := []series{
		{"ax", xys(l, t, func(rec trajectory.Record) (float64, bool) { return rec.EgoAX, true })},
		{"ay", xys(l, t, func(rec trajectory.Record) (float64, bool) { return rec.EgoAY, true })},
	}

	files := []struct {
		name, title, xLabel, yLabel string
		series                      []series
		lanes                       bool
	}{
		{"lateral.png", "Lateral position", "t (s)", "y (m)", lateral, false},
		{"speed.png", "Longitudinal speed", "t (s)", "vx (m/s)", speed, false},
		{"acceleration.png", "Ego acceleration", "t (s)", "a (m/s²)", accel, false},
		{"topview.png", "Trajectories", "x (m)", "y (m)", topView, true},
	}
	var out []string
	for _, f := range files {
		p := plot.New()
		p.Title.Text = fmt.Sprintf("%s: %s", f.title, l.Scenario)
		p.X.Label.Text = f.xLabel
		p.Y.Label.Text = f.yLabel
		stylePlot(p)
		if f.lanes {
			if err := addLaneMarkings(p, r, l); err != nil {
				return out, err
			}
		}
		if err := addSeries(p, f.series); err != nil {
			return out, err
		}
		path := filepath.Join(dir, f.name)
		if err := savePlotPNG(p, 10, 4, path); err != nil {
			return out, err
		}
		out = append(out, path)
	}
	log.Infof("%d plots written to %s", len(out), dir)
	return out, nil
}

// xys 按记录提取点列，value返回false的记录跳过
func xys(l *trajectory.Log, x func(i int) float64, value func(trajectory.Record) (float64, bool)) plotter.XYs {
	pts := make(plotter.XYs, 0, len(l.Records))
	for i, rec := range l.Records {
		if y, ok := value(rec); ok {
			pts = append(pts, plotter.XY{X: x(i), Y: y})
		}
	}
	return pts
}

func addSeries(p *plot.Plot, ss []series) error {
	for i, s := range ss {
		if len(s.xys) == 0 {
			continue
		}
		line, err := plotter.NewLine(s.xys)
		if err != nil {
			return fmt.Errorf("plot %s: %w", s.name, err)
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(s.name, line)
	}
	p.Legend.Top = true
	return nil
}

// addLaneMarkings 绘制道路边界与车道分隔线
func addLaneMarkings(p *plot.Plot, r *road.Road, l *trajectory.Log) error {
	xMin, xMax := l.Records[0].EgoX, l.Records[0].EgoX
	for _, rec := range l.Records {
		xMin = min(xMin, rec.EgoX)
		xMax = max(xMax, rec.EgoX)
		for _, o := range rec.Others {
			xMin = min(xMin, o.X)
			xMax = max(xMax, o.X)
		}
	}
	for i := 0; i <= r.NumLanes(); i++ {
		y := r.YMin() + float64(i)*r.LaneWidth()
		line, err := plotter.NewLine(plotter.XYs{{X: xMin, Y: y}, {X: xMax, Y: y}})
		if err != nil {
			return err
		}
		line.Color = plotutil.Color(7)
		if i > 0 && i < r.NumLanes() {
			line.Dashes = []vg.Length{vg.Points(6), vg.Points(4)}
		}
		p.Add(line)
	}
	return nil
}

func stylePlot(p *plot.Plot) {
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.Title.Padding = vg.Points(8)
	p.X.Label.TextStyle.Font.Size = vg.Points(12)
	p.Y.Label.TextStyle.Font.Size = vg.Points(12)
	p.X.Tick.Label.Font.Size = vg.Points(10)
	p.Y.Tick.Label.Font.Size = vg.Points(10)
	p.Add(plotter.NewGrid())
}

func savePlotPNG(p *plot.Plot, widthIn, heightIn float64, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("cannot create directory: %w", err)
	}
	c := vgimg.NewWith(
		vgimg.UseWH(vg.Length(widthIn)*vg.Inch, vg.Length(heightIn)*vg.Inch),
		vgimg.UseDPI(dpi),
	)
	p.Draw(draw.New(c))

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("cannot create png: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(bw); err != nil {
		return fmt.Errorf("cannot write png: %w", err)
	}
	return bw.Flush()
}
