// Package mpc 构建并求解滚动时域轨迹优化问题
package mpc

import (
	"fmt"
	"math"

	"github.com/tsinghua-fib-lab/safelane-sim/control/barrier"
	"github.com/tsinghua-fib-lab/safelane-sim/control/nlp"
	"github.com/tsinghua-fib-lab/safelane-sim/control/supervisor"
	"github.com/tsinghua-fib-lab/safelane-sim/entity/vehicle"
	"github.com/tsinghua-fib-lab/safelane-sim/utils/config"
)

// Input 单个控制周期的优化输入
type Input struct {
	Ego     *vehicle.Vehicle   // 受控车辆
	Others  []*vehicle.Vehicle // 周车
	Barrier *barrier.Barrier   // 已整定的屏障函数
	Mode    supervisor.Mode    // 本周期的决策状态（提供δ与η）
	YRef    float64            // 参考横向位置
	VDes    float64            // 期望纵向速度
}

// Optimizer 轨迹优化器
// 功能：每个控制周期重新构建有限时域优化问题，交给求解器求解，取第一步加速度
// 说明：除配置外不保存任何跨周期状态
type Optimizer struct {
	c        config.MPC
	dt       float64
	ttc      float64
	tiv      float64
	yMin     float64
	yMax     float64
	maxSpeed float64
	slipTan  float64
	solver   nlp.Solver
}

// New 创建轨迹优化器
// 参数：c-优化器配置，dt-离散步长，sup-决策状态机（提供TTC与TIV），yMin/yMax-道路边界，
// maxSpeed-周车预测使用的速度上限，solver-非线性规划求解器
func New(
	c config.MPC, dt float64, sup *supervisor.Supervisor,
	yMin, yMax, maxSpeed float64, solver nlp.Solver,
) *Optimizer {
	return &Optimizer{
		c:        c,
		dt:       dt,
		ttc:      sup.TTC(),
		tiv:      sup.TIV(),
		yMin:     yMin,
		yMax:     yMax,
		maxSpeed: maxSpeed,
		slipTan:  math.Tan(c.MaxSlipAngleDeg * math.Pi / 180),
		solver:   solver,
	}
}

// FallbackCommand 求解失败时使用的指令
func (o *Optimizer) FallbackCommand() Command {
	return Command{Longitudinal: o.c.FallbackAx, Lateral: 0}
}

// Layout 决策变量在向量中的位置
type Layout struct {
	X, Y, VX, VY   []int   // 预测时域内的状态
	AX, AY         []int   // 控制时域内的加速度
	DAX, DAY       []int   // 相邻控制量之差
	SlackY, SlackB []int   // 道路边界与屏障约束的松弛变量
	Xi             [][]int // 每辆周车的制动约束松弛变量
}

// Solve 求解一个控制周期
// 功能：校验输入、构建问题、调用求解器并提取第一步指令
// 参数：in-优化输入
// 返回：优化结果；输入非法时返回ErrInvalidInput，求解失败不返回错误而是给出回退指令
func (o *Optimizer) Solve(in Input) (Plan, error) {
	if err := o.validate(in); err != nil {
		return Plan{Status: nlp.NumericalFailure, Command: o.FallbackCommand(), Err: err}, err
	}
	p, layout := o.Build(in)
	res := o.solveSafely(p)
	plan := Plan{
		Status:     res.Status,
		Objective:  res.Objective,
		Violation:  res.Violation,
		Iterations: res.Iterations,
		Err:        res.Err,
	}
	if res.Status != nlp.Solved || len(res.X) != p.NumVars() {
		if plan.Status == nlp.Solved {
			plan.Status = nlp.NumericalFailure
			plan.Err = fmt.Errorf("solution has %d values, want %d", len(res.X), p.NumVars())
		}
		plan.Command = o.FallbackCommand()
		log.Warnf("%v at ego x=%.2f, using fallback %v: %v",
			plan.Status, in.Ego.State().X, plan.Command, plan.Err)
		return plan, nil
	}
	plan.Command = Command{Longitudinal: res.X[layout.AX[0]], Lateral: res.X[layout.AY[0]]}
	log.Debugf("solved in %d iterations, f=%.4g, command %v", res.Iterations, res.Objective, plan.Command)
	return plan, nil
}

func (o *Optimizer) validate(in Input) error {
	if in.Ego == nil {
		return fmt.Errorf("%w: nil ego vehicle", ErrInvalidInput)
	}
	if !in.Ego.State().Finite() {
		return fmt.Errorf("%w: ego state %+v", ErrInvalidInput, in.Ego.State())
	}
	for _, v := range in.Others {
		if v == nil || !v.State().Finite() {
			return fmt.Errorf("%w: surrounding vehicle state", ErrInvalidInput)
		}
	}
	if in.Barrier == nil {
		return fmt.Errorf("%w: nil barrier", ErrInvalidInput)
	}
	if _, err := in.Barrier.Steepness(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if math.IsNaN(in.YRef) || math.IsNaN(in.VDes) {
		return fmt.Errorf("%w: reference is NaN", ErrInvalidInput)
	}
	return nil
}

// solveSafely 调用求解器，将panic转换为NumericalFailure
func (o *Optimizer) solveSafely(p *nlp.Problem) (res nlp.Result) {
	defer func() {
		if r := recover(); r != nil {
			res = nlp.Result{Status: nlp.NumericalFailure, Err: fmt.Errorf("solver panic: %v", r)}
		}
	}()
	return o.solver.Solve(p)
}

// PredictOthers 周车在预测时域内的状态
// 功能：按给定加速度以与积分器相同的半隐式格式外推；关闭预测时保持当前状态
// 返回：[周车][预测步]状态
func (o *Optimizer) PredictOthers(others []*vehicle.Vehicle) [][]vehicle.State {
	np := o.c.PredictionHorizon
	pred := make([][]vehicle.State, len(others))
	for j, v := range others {
		pred[j] = make([]vehicle.State, np)
		s := v.State()
		ax, ay := v.PrescribedAcceleration()
		for i := range np {
			pred[j][i] = s
			if o.c.PredictOthers {
				s = vehicle.Step(s, ax, ay, o.dt, o.maxSpeed)
			}
		}
	}
	return pred
}

// Build 构建本周期的优化问题
// 功能：声明决策变量与初值，写入目标函数、等式与不等式约束
// 参数：in-优化输入（须已通过校验）
// 返回：问题描述，变量布局
// 算法说明：
// 1. 初值为零输入外推：X、Y按当前速度匀速外推，速度保持，加速度为0，松弛变量取使约束成立的最小值
// 2. 目标：Σ Qlat(Y-yRef)² + Qvel(VX-vDes)² + χ(slackY² + slackB² + Σξ²) + Σ R(dAX² + dAY²)
// 3. 动力学：前向欧拉，超出控制时域的步保持最后一个控制量
// 4. 屏障：fold(Δy) >= B(Δx, TIV·VX, δ) - slackB，fold(d) = d <= 1 ? -d : d
// 5. 制动：Δx + κξ >= TTC·VX - M·η
func (o *Optimizer) Build(in Input) (*nlp.Problem, Layout) {
	np, nc, dt := o.c.PredictionHorizon, o.c.ControlHorizon, o.dt
	ego := in.Ego.State()
	pred := o.PredictOthers(in.Others)
	delta, eta := in.Mode.LaneChange, float64(in.Mode.Brake)
	halfWidth := in.Ego.Width() / 2

	b := nlp.NewBuilder()
	var l Layout
	l.X = b.Vars("X", np, func(i int) float64 { return ego.X + float64(i)*ego.VX*dt })
	l.Y = b.Vars("Y", np, func(i int) float64 { return ego.Y + float64(i)*ego.VY*dt })
	l.VX = b.Vars("VX", np, func(int) float64 { return ego.VX })
	l.VY = b.Vars("VY", np, func(int) float64 { return ego.VY })
	l.AX = b.Vars("AX", nc, nil)
	l.AY = b.Vars("AY", nc, nil)
	l.DAX = b.Vars("dAX", nc-1, nil)
	l.DAY = b.Vars("dAY", nc-1, nil)
	l.SlackY = b.Vars("slackY", np, func(i int) float64 {
		y := ego.Y + float64(i)*ego.VY*dt
		return math.Max(0, math.Max(o.yMin+halfWidth-y, y-(o.yMax-halfWidth)))
	})
	l.SlackB = b.Vars("slackB", np, func(i int) float64 {
		worst := 0.
		for j := range pred {
			y := ego.Y + float64(i)*ego.VY*dt
			x := ego.X + float64(i)*ego.VX*dt
			bv, _ := in.Barrier.Evaluate(pred[j][i].X-x, o.tiv*ego.VX, delta)
			worst = math.Max(worst, bv-fold(pred[j][i].Y-y))
		}
		return worst
	})
	l.Xi = make([][]int, len(pred))
	for j := range pred {
		l.Xi[j] = b.Vars(fmt.Sprintf("xi%d", j), np, func(i int) float64 {
			x := ego.X + float64(i)*ego.VX*dt
			need := o.ttc*ego.VX - o.c.BigM*eta - (pred[j][i].X - x)
			return math.Max(0, need/o.c.Kappa)
		})
	}

	// 目标函数
	for i := range np {
		b.Minimize(o.c.QLat, nlp.Lin(-in.YRef, nlp.T(l.Y[i], 1)))
		b.Minimize(o.c.QVel, nlp.Lin(-in.VDes, nlp.T(l.VX[i], 1)))
		b.Minimize(o.c.SlackWeight, nlp.Lin(0, nlp.T(l.SlackY[i], 1)))
		b.Minimize(o.c.SlackWeight, nlp.Lin(0, nlp.T(l.SlackB[i], 1)))
		for j := range pred {
			b.Minimize(o.c.SlackWeight, nlp.Lin(0, nlp.T(l.Xi[j][i], 1)))
		}
	}
	for i := range nc - 1 {
		b.Minimize(o.c.RJerkX, nlp.Lin(0, nlp.T(l.DAX[i], 1)))
		b.Minimize(o.c.RJerkY, nlp.Lin(0, nlp.T(l.DAY[i], 1)))
	}

	// 初始状态
	b.Eq("init.X", nlp.Lin(-ego.X, nlp.T(l.X[0], 1)))
	b.Eq("init.Y", nlp.Lin(-ego.Y, nlp.T(l.Y[0], 1)))
	b.Eq("init.VX", nlp.Lin(-ego.VX, nlp.T(l.VX[0], 1)))
	b.Eq("init.VY", nlp.Lin(-ego.VY, nlp.T(l.VY[0], 1)))

	// 动力学
	for i := range np - 1 {
		k := min(i, nc-1)
		b.Eq(fmt.Sprintf("dyn.VX[%d]", i), nlp.Lin(0, nlp.T(l.VX[i+1], 1), nlp.T(l.VX[i], -1), nlp.T(l.AX[k], -dt)))
		b.Eq(fmt.Sprintf("dyn.VY[%d]", i), nlp.Lin(0, nlp.T(l.VY[i+1], 1), nlp.T(l.VY[i], -1), nlp.T(l.AY[k], -dt)))
		b.Eq(fmt.Sprintf("dyn.Y[%d]", i), nlp.Lin(0, nlp.T(l.Y[i+1], 1), nlp.T(l.Y[i], -1), nlp.T(l.VY[i], -dt)))
		b.Eq(fmt.Sprintf("dyn.X[%d]", i), nlp.Lin(0, nlp.T(l.X[i+1], 1), nlp.T(l.X[i], -1), nlp.T(l.VX[i], -dt)))
	}

	// 执行器
	for i := range nc {
		b.Geq(fmt.Sprintf("ax.min[%d]", i), nlp.Lin(-o.c.AxMin, nlp.T(l.AX[i], 1)))
		b.Geq(fmt.Sprintf("ax.max[%d]", i), nlp.Lin(o.c.AxMax, nlp.T(l.AX[i], -1)))
		b.Geq(fmt.Sprintf("ay.min[%d]", i), nlp.Lin(-o.c.AyMin, nlp.T(l.AY[i], 1)))
		b.Geq(fmt.Sprintf("ay.max[%d]", i), nlp.Lin(o.c.AyMax, nlp.T(l.AY[i], -1)))
	}
	for i := range nc - 1 {
		b.Eq(fmt.Sprintf("jerk.X[%d]", i), nlp.Lin(0, nlp.T(l.DAX[i], 1), nlp.T(l.AX[i+1], -1), nlp.T(l.AX[i], 1)))
		b.Geq(fmt.Sprintf("jerk.X.max[%d]", i), nlp.Lin(o.c.JerkXMax, nlp.T(l.DAX[i], -1)))
		b.Geq(fmt.Sprintf("jerk.X.min[%d]", i), nlp.Lin(o.c.JerkXMax, nlp.T(l.DAX[i], 1)))
		b.Eq(fmt.Sprintf("jerk.Y[%d]", i), nlp.Lin(0, nlp.T(l.DAY[i], 1), nlp.T(l.AY[i+1], -1), nlp.T(l.AY[i], 1)))
		b.Geq(fmt.Sprintf("jerk.Y.max[%d]", i), nlp.Lin(o.c.JerkYMax, nlp.T(l.DAY[i], -1)))
		b.Geq(fmt.Sprintf("jerk.Y.min[%d]", i), nlp.Lin(o.c.JerkYMax, nlp.T(l.DAY[i], 1)))
	}

	for i := range np {
		// 道路边界
		b.Geq(fmt.Sprintf("road.min[%d]", i),
			nlp.Lin(-(o.yMin + halfWidth), nlp.T(l.Y[i], 1), nlp.T(l.SlackY[i], 1)))
		b.Geq(fmt.Sprintf("road.max[%d]", i),
			nlp.Lin(o.yMax-halfWidth, nlp.T(l.Y[i], -1), nlp.T(l.SlackY[i], 1)))
		// 侧偏角
		b.Geq(fmt.Sprintf("slip.min[%d]", i), nlp.Lin(0, nlp.T(l.VY[i], 1), nlp.T(l.VX[i], o.slipTan)))
		b.Geq(fmt.Sprintf("slip.max[%d]", i), nlp.Lin(0, nlp.T(l.VY[i], -1), nlp.T(l.VX[i], o.slipTan)))

		for j := range pred {
			other := pred[j][i]
			o.addBarrier(b, fmt.Sprintf("barrier[%d][%d]", j, i), in.Barrier, other, delta,
				l.X[i], l.Y[i], l.VX[i], l.SlackB[i])
			// Δx + κξ - TTC·VX + M·η >= 0
			b.Geq(fmt.Sprintf("brake[%d][%d]", j, i), nlp.Lin(other.X+o.c.BigM*eta,
				nlp.T(l.X[i], -1), nlp.T(l.Xi[j][i], o.c.Kappa), nlp.T(l.VX[i], -o.ttc)))
			b.Geq(fmt.Sprintf("xi[%d][%d]", j, i), nlp.Lin(0, nlp.T(l.Xi[j][i], 1)))
		}
		b.Geq(fmt.Sprintf("slackY[%d]", i), nlp.Lin(0, nlp.T(l.SlackY[i], 1)))
		b.Geq(fmt.Sprintf("slackB[%d]", i), nlp.Lin(0, nlp.T(l.SlackB[i], 1)))
	}
	return b.Build(), l
}

// addBarrier 加入屏障约束 fold(oy - Y) - B(ox - X, TIV·VX, δ) + slackB >= 0
func (o *Optimizer) addBarrier(
	b *nlp.Builder, name string, bar *barrier.Barrier, other vehicle.State, delta int,
	ix, iy, ivx, islack int,
) {
	tiv := o.tiv
	b.Nonlinear(name, nlp.Inequality,
		func(x []float64) float64 {
			bv, _ := bar.Evaluate(other.X-x[ix], tiv*x[ivx], delta)
			return fold(other.Y-x[iy]) - bv + x[islack]
		},
		func(x []float64, add func(int, float64)) {
			dDx, dSafety, _ := bar.Gradient(other.X-x[ix], tiv*x[ivx], delta)
			// ∂Δx/∂X = -1，∂s_f/∂VX = TIV
			add(ix, dDx)
			add(ivx, -dSafety*tiv)
			if other.Y-x[iy] <= 1 {
				add(iy, 1)
			} else {
				add(iy, -1)
			}
			add(islack, 1)
		},
	)
}

// fold 屏障约束左侧的横向距离折叠
func fold(dy float64) float64 {
	if dy <= 1 {
		return -dy
	}
	return dy
}
