package task

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/safelane-sim/control/mpc"
	"github.com/tsinghua-fib-lab/safelane-sim/entity/vehicle"
)

var (
	heartBeatInterval = flag.Int("log.heartbeat_interval", 100, "心跳日志间隔步数")
)

// prepare 准备阶段，每步执行一次
// 功能：输出心跳日志
func (ctx *Context) prepare() {
	if interval := int32(*heartBeatInterval); interval > 0 && ctx.clock.InternalStep%interval == 0 {
		hour, minute, second := ctx.clock.GetHourMinuteSecond()
		ego := ctx.Ego().State()
		log.Infof(
			"STEP: %d(%d:%d:%.2f) mode=%v ego x=%.1f y=%.2f vx=%.2f",
			ctx.clock.InternalStep,
			hour, minute, second,
			ctx.mode, ego.X, ego.Y, ego.VX,
		)
	}
}

// update 更新阶段，每步执行一次
// 功能：执行一个完整的控制周期
// 返回：优化器输入非法时的错误
// 算法说明：
// 1. 决策：用当前状态评估一次状态机，得到δ与η
// 2. 屏障整定：按受控车辆当前纵向速度重新计算陡度
// 3. 优化：求解本周期问题，失败时得到回退指令
// 4. 截断：将指令限制在加速度上下限内
// 5. 积分：先推进受控车辆，再以相同步长按给定加速度推进周车
// 6. 记录：时钟推进一步后记录本周期末的状态
func (ctx *Context) update() error {
	ego, others := ctx.Ego(), ctx.Others()
	dt := ctx.clock.DT
	c := ctx.runtimeConfig.All

	otherStates := lo.Map(others, func(v *vehicle.Vehicle, _ int) vehicle.State { return v.State() })
	prev := ctx.mode
	ctx.mode = ctx.supervisor.Evaluate(prev, ego.State(), otherStates)
	ctx.metrics.ObserveMode(prev.State, ctx.mode.State)

	ctx.barrier.Tune(ego.State().VX)

	start := time.Now()
	plan, err := ctx.optimizer.Solve(mpc.Input{
		Ego:     ego,
		Others:  others,
		Barrier: ctx.barrier,
		Mode:    ctx.mode,
		YRef:    ctx.initRes.YRef,
		VDes:    ctx.initRes.VDes,
	})
	if err != nil {
		return fmt.Errorf("step %d: %w", ctx.clock.InternalStep, err)
	}
	ctx.metrics.ObserveSolve(plan.Status.String(), time.Since(start), plan.Iterations, plan.Fallback())
	if plan.Fallback() {
		ctx.fallbacks++
	}

	ax := lo.Clamp(plan.Command.Longitudinal, c.MPC.AxMin, c.MPC.AxMax)
	ay := lo.Clamp(plan.Command.Lateral, c.MPC.AyMin, c.MPC.AyMax)
	ego.Advance(ax, ay, dt)
	for _, v := range others {
		v.AdvancePrescribed(dt)
	}

	ctx.clock.Tick()
	ctx.metrics.Steps.Inc()
	ctx.trajectory.Append(ctx.clock.InternalStep, ctx.clock.T, ego.State(), others,
		ctx.mode.State.String(), plan.Status.String())
	log.Debugf("step %d: mode=%v command=(%.4f, %.4f) status=%v",
		ctx.clock.InternalStep, ctx.mode, ax, ay, plan.Status)
	return nil
}

// Step 执行一个控制周期
func (ctx *Context) Step() error {
	ctx.prepare()
	return ctx.update()
}

// Run 运行
// 功能：从起始步运行到结束步，或直到调用Close、goCtx取消
// 返回：优化器输入非法或goCtx取消时的错误
func (ctx *Context) Run(goCtx context.Context) error {
	ctx.clock.Init()
	log.Infof("scenario %q: %d steps of %.2fs, reference y=%.2f, desired vx=%.1f",
		ctx.initRes.Name, ctx.clock.Steps(), ctx.clock.DT, ctx.initRes.YRef, ctx.initRes.VDes)
	for !ctx.clock.Done() && !ctx.closed.Load() {
		if err := goCtx.Err(); err != nil {
			return err
		}
		if err := ctx.Step(); err != nil {
			return err
		}
	}
	ego := ctx.Ego().State()
	log.Infof("engine complete at t=%.2fs (%v): final mode %v, %d fallbacks, ego x=%.1f y=%.2f vx=%.2f",
		ctx.clock.T, ctx.clock, ctx.mode, ctx.fallbacks, ego.X, ego.Y, ego.VX)
	return nil
}
