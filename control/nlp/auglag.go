package nlp

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

const (
	initialPenalty   = 10.0
	penaltyGrowth    = 10.0
	maxPenalty       = 1e9
	violationDecay   = 0.25 // 违反量下降不足该比例时增大罚因子
	maxOuterIter     = 60
	innerConvergeWin = 20 // 目标函数连续不变的迭代次数
)

// ErrNonFinite 求解过程中出现NaN或Inf
var ErrNonFinite = errors.New("nlp: non-finite value")

// AugmentedLagrangian 增广拉格朗日法求解器
// 功能：外层更新乘子与罚因子，内层用gonum的L-BFGS求解无约束子问题
// 说明：Solve不保留任何跨调用状态
type AugmentedLagrangian struct {
	opts Options
}

// NewAugmentedLagrangian 创建求解器
func NewAugmentedLagrangian(opts Options) *AugmentedLagrangian {
	if opts.MaxIter <= 0 {
		opts.MaxIter = 1000
	}
	if opts.AcceptableTol <= 0 {
		opts.AcceptableTol = 1e-4
	}
	if opts.AcceptableObjChangeTol <= 0 {
		opts.AcceptableObjChangeTol = 1e-4
	}
	if opts.ConstraintTol <= 0 {
		opts.ConstraintTol = 1e-3
	}
	return &AugmentedLagrangian{opts: opts}
}

// Options 求解器配置
func (s *AugmentedLagrangian) Options() Options {
	return s.opts
}

// merit 增广拉格朗日函数
// L(x) = f(x) + Σeq (λc + ρ/2·c²) + Σineq (max(0, μ-ρc)² - μ²)/(2ρ)
type merit struct {
	p   *Problem
	mul []float64
	rho float64
}

func (m *merit) value(x []float64) float64 {
	v := m.p.Objective(x)
	for i := range m.p.constraints {
		c := m.p.constraints[i].Value(x)
		mu := m.mul[i]
		if m.p.constraints[i].Kind == Equality {
			v += mu*c + 0.5*m.rho*c*c
		} else {
			t := math.Max(0, mu-m.rho*c)
			v += (t*t - mu*mu) / (2 * m.rho)
		}
	}
	return v
}

func (m *merit) grad(g, x []float64) {
	for i := range g {
		g[i] = 0
	}
	m.p.ObjectiveGrad(x, g)
	for i := range m.p.constraints {
		con := &m.p.constraints[i]
		c := con.Value(x)
		var scale float64
		if con.Kind == Equality {
			scale = m.mul[i] + m.rho*c
		} else {
			scale = -math.Max(0, m.mul[i]-m.rho*c)
		}
		if scale != 0 {
			con.addGrad(x, g, scale)
		}
	}
}

// updateMultipliers 一阶乘子更新
func (m *merit) updateMultipliers(x []float64) {
	for i := range m.p.constraints {
		c := m.p.constraints[i].Value(x)
		if m.p.constraints[i].Kind == Equality {
			m.mul[i] += m.rho * c
		} else {
			m.mul[i] = math.Max(0, m.mul[i]-m.rho*c)
		}
	}
}

// Solve 求解问题
// 功能：从问题初值出发迭代，直到约束违反量与目标变化同时满足容差或迭代预算耗尽
// 参数：p-问题描述
// 返回：求解结果，任何失败都以Status表示，不返回错误、不panic
// 算法说明：
// 1. 内层：固定乘子与罚因子，用L-BFGS最小化增广拉格朗日函数，每次至多MaxIter步
// 2. 外层：更新乘子；违反量下降不足时罚因子乘以10，至多maxOuterIter轮
// 3. 终止：违反量<=ConstraintTol且目标相对变化<=AcceptableObjChangeTol为Solved；
// 外层轮数耗尽仍不满足约束为Infeasible；出现NaN/Inf或内部错误为NumericalFailure
func (s *AugmentedLagrangian) Solve(p *Problem) (res Result) {
	x := p.InitialGuess()
	n := len(x)
	if n == 0 {
		return Result{Status: Solved, X: x}
	}
	m := &merit{p: p, mul: make([]float64, len(p.constraints)), rho: initialPenalty}
	prevViolation, worst := p.MaxViolation(x)
	prevObjective := p.Objective(x)
	if math.IsNaN(prevViolation) || math.IsNaN(prevObjective) || math.IsInf(prevObjective, 0) {
		return Result{Status: NumericalFailure, X: x,
			Err: fmt.Errorf("%w: at initial guess (objective %v, %s)", ErrNonFinite, prevObjective, worst)}
	}
	for outer := 0; outer < maxOuterIter; outer++ {
		problem := optimize.Problem{
			Func: m.value,
			Grad: m.grad,
		}
		settings := &optimize.Settings{
			MajorIterations:   s.opts.MaxIter,
			GradientThreshold: s.opts.AcceptableTol,
			Converger: &optimize.FunctionConverge{
				Absolute:   s.opts.AcceptableObjChangeTol * 1e-2,
				Relative:   s.opts.AcceptableObjChangeTol * 1e-2,
				Iterations: innerConvergeWin,
			},
		}
		if s.opts.Verbose {
			settings.Recorder = optimize.NewPrinter()
		}
		inner, err := optimize.Minimize(problem, x, settings, &optimize.LBFGS{})
		if inner == nil {
			return Result{Status: NumericalFailure, X: x, Iterations: res.Iterations, Err: err}
		}
		res.Iterations += inner.MajorIterations
		if floats.HasNaN(inner.X) || math.IsInf(floats.Norm(inner.X, math.Inf(1)), 0) {
			return Result{Status: NumericalFailure, X: x, Iterations: res.Iterations,
				Err: fmt.Errorf("%w: inner iterate (status %v, err %v)", ErrNonFinite, inner.Status, err)}
		}
		if err != nil {
			// 线搜索失败等情况下仍保留当前最好点继续外层迭代
			log.Debugf("inner solve stopped: %v (status %v)", err, inner.Status)
		}
		copy(x, inner.X)

		violation, worst := p.MaxViolation(x)
		objective := p.Objective(x)
		if math.IsNaN(objective) || math.IsInf(objective, 0) || math.IsNaN(violation) {
			return Result{Status: NumericalFailure, X: x, Iterations: res.Iterations,
				Err: fmt.Errorf("%w: objective %v, violation %v", ErrNonFinite, objective, violation)}
		}
		objChange := math.Abs(objective-prevObjective) / math.Max(1, math.Abs(objective))
		if s.opts.Verbose {
			log.Debugf("outer %d: f=%.6g violation=%.3g (%s) rho=%.1g iter=%d",
				outer, objective, violation, worst, m.rho, res.Iterations)
		}
		if violation <= s.opts.ConstraintTol && objChange <= s.opts.AcceptableObjChangeTol {
			res.Status = Solved
			res.X = x
			res.Objective = objective
			res.Violation = violation
			return res
		}
		m.updateMultipliers(x)
		if violation > violationDecay*prevViolation {
			m.rho = math.Min(m.rho*penaltyGrowth, maxPenalty)
		}
		prevViolation = violation
		prevObjective = objective
	}

	res.X = x
	res.Objective = p.Objective(x)
	res.Violation, _ = p.MaxViolation(x)
	if res.Violation <= s.opts.ConstraintTol {
		res.Status = Solved
	} else {
		res.Status = Infeasible
	}
	return res
}
