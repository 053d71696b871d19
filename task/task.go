// Package task 组织控制循环：决策、屏障整定、轨迹优化、积分与记录
package task

import (
	"sync/atomic"

	"github.com/tsinghua-fib-lab/safelane-sim/clock"
	"github.com/tsinghua-fib-lab/safelane-sim/control/barrier"
	"github.com/tsinghua-fib-lab/safelane-sim/control/mpc"
	"github.com/tsinghua-fib-lab/safelane-sim/control/nlp"
	"github.com/tsinghua-fib-lab/safelane-sim/control/supervisor"
	"github.com/tsinghua-fib-lab/safelane-sim/entity/road"
	"github.com/tsinghua-fib-lab/safelane-sim/entity/vehicle"
	"github.com/tsinghua-fib-lab/safelane-sim/metrics"
	"github.com/tsinghua-fib-lab/safelane-sim/output/trajectory"
	"github.com/tsinghua-fib-lab/safelane-sim/utils/config"
	"github.com/tsinghua-fib-lab/safelane-sim/utils/input"
)

// Context 仿真任务上下文
// 功能：包含一次仿真任务的所有变量和状态
// 说明：跨周期保存的只有车辆、决策状态与屏障陡度，其余对象每周期重新构建
type Context struct {
	// 关闭指令
	closed atomic.Bool

	// 时钟
	clock *clock.Clock
	// 运行时配置
	runtimeConfig *config.RuntimeConfig
	// 道路
	road *road.Road

	// 决策状态机与当前决策状态
	supervisor *supervisor.Supervisor
	mode       supervisor.Mode
	// 屏障函数
	barrier *barrier.Barrier
	// 轨迹优化器
	optimizer *mpc.Optimizer

	// 用于初始化的输入
	initRes *input.Input

	// 轨迹日志
	trajectory *trajectory.Log
	// 指标
	metrics *metrics.Metrics
	// 使用回退指令的周期数
	fallbacks int
}

// NewContext 创建新的仿真任务上下文
// 功能：按配置加载场景并初始化控制循环的各个组件
// 参数：c-配置对象，solver-非线性规划求解器，为nil时按配置创建增广拉格朗日求解器
// 返回：上下文，错误（场景加载失败）
func NewContext(c config.Config, solver nlp.Solver) (*Context, error) {
	r := road.New(c.Road)
	in, err := input.Init(c, r)
	if err != nil {
		return nil, err
	}
	return NewContextWithInput(c, in, solver), nil
}

// NewContextWithInput 使用给定的初始场景创建仿真任务上下文
// 算法说明：
// 1. 创建时钟、运行时配置与道路
// 2. 创建决策状态机、屏障函数与轨迹优化器
// 3. 初始化决策状态为车道保持，创建轨迹日志与指标
func NewContextWithInput(c config.Config, in *input.Input, solver nlp.Solver) *Context {
	if solver == nil {
		solver = nlp.NewAugmentedLagrangian(nlp.Options{
			MaxIter:                c.Solver.MaxIter,
			AcceptableTol:          c.Solver.AcceptableTol,
			AcceptableObjChangeTol: c.Solver.AcceptableObjChangeTol,
			ConstraintTol:          c.Solver.ConstraintViolationTol,
			Verbose:                c.Solver.Verbose,
		})
	}
	ctx := &Context{
		clock:         clock.New(c.Control.Step),
		runtimeConfig: config.NewRuntimeConfig(c),
		road:          road.New(c.Road),
		supervisor:    supervisor.New(c.Supervisor),
		mode:          supervisor.Initial(),
		barrier:       barrier.New(c.Barrier),
		initRes:       in,
		metrics:       metrics.New(),
	}
	ctx.optimizer = mpc.New(
		c.MPC, ctx.clock.DT, ctx.supervisor,
		ctx.road.YMin(), ctx.road.YMax(), c.Vehicle.MaxSpeed, solver,
	)
	ctx.trajectory = trajectory.New(in.Name, ctx.clock.DT)
	return ctx
}

func (ctx *Context) GetInput() *input.Input {
	return ctx.initRes
}

func (ctx *Context) Clock() *clock.Clock {
	return ctx.clock
}

func (ctx *Context) Road() *road.Road {
	return ctx.road
}

func (ctx *Context) RuntimeConfig() *config.RuntimeConfig {
	return ctx.runtimeConfig
}

func (ctx *Context) Ego() *vehicle.Vehicle {
	return ctx.initRes.Ego
}

func (ctx *Context) Others() []*vehicle.Vehicle {
	return ctx.initRes.Others
}

// Mode 当前决策状态
func (ctx *Context) Mode() supervisor.Mode {
	return ctx.mode
}

func (ctx *Context) Trajectory() *trajectory.Log {
	return ctx.trajectory
}

func (ctx *Context) Metrics() *metrics.Metrics {
	return ctx.metrics
}

// Fallbacks 使用回退指令的周期数
func (ctx *Context) Fallbacks() int {
	return ctx.fallbacks
}

// Close 请求在当前周期结束后停止
func (ctx *Context) Close() {
	ctx.closed.Store(true)
}
