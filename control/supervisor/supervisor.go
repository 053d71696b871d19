// Package supervisor 实现车道保持/变道/制动决策的有限状态机
package supervisor

import (
	"math"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/safelane-sim/entity/vehicle"
	"github.com/tsinghua-fib-lab/safelane-sim/utils/config"
)

const (
	frontLateral    = 0.5 // 同车道前车的横向判定距离（米）
	adjacentTol     = 0.5 // 相邻车道横向判定容差（米）
	adjacentBehind  = -20 // 相邻车道占用的纵向判定区间下界（米）
	adjacentAheadOf = 50  // 相邻车道占用的纵向判定区间上界（米）
)

// Situation 受控车辆周围的交通态势
type Situation struct {
	Emergency       bool    // 存在即将碰撞的车辆
	HasFront        bool    // 同车道前方存在车辆
	FrontDistance   float64 // 与最近前车的纵向距离（米）
	AdjacentBlocked bool    // 相邻车道被占用
}

// Supervisor 决策状态机
// 功能：根据周车态势与车速计算下一周期的运行模式与激活信号
// 说明：本身不保存运行模式，调用方持有Mode并逐周期传入
type Supervisor struct {
	ttc              float64
	tiv              float64
	progressStep     float64
	adjacentGap      float64
	stopSpeed        float64
	emergencyAhead   float64
	emergencyLateral float64
}

// New 创建决策状态机
func New(c config.Supervisor) *Supervisor {
	return &Supervisor{
		ttc:              c.TTC,
		tiv:              c.TIV,
		progressStep:     c.ProgressStep,
		adjacentGap:      c.AdjacentLaneGap,
		stopSpeed:        c.StopSpeed,
		emergencyAhead:   c.EmergencyAhead,
		emergencyLateral: c.EmergencyLateral,
	}
}

// TTC 碰撞时间阈值（秒）
func (s *Supervisor) TTC() float64 {
	return s.ttc
}

// TIV 车间时距阈值（秒）
func (s *Supervisor) TIV() float64 {
	return s.tiv
}

// DangerDistance 危险区距离 s_f = TIV·vx
func (s *Supervisor) DangerDistance(vx float64) float64 {
	return s.tiv * vx
}

// MitigationDistance 缓解区距离 s_long = TTC·vx
func (s *Supervisor) MitigationDistance(vx float64) float64 {
	return s.ttc * vx
}

// Classify 态势分类
// 功能：以受控车辆为参考，判定紧急制动条件、同车道最近前车与相邻车道占用
// 参数：ego-受控车辆状态，others-周车状态
// 返回：交通态势
func (s *Supervisor) Classify(ego vehicle.State, others []vehicle.State) (sit Situation) {
	for _, o := range others {
		dx := o.X - ego.X
		dy := o.Y - ego.Y
		if math.Abs(dy) <= s.emergencyLateral && dx > 0 && dx < s.emergencyAhead {
			sit.Emergency = true
		}
		if math.Abs(dy) <= frontLateral && dx > 0 {
			if !sit.HasFront || dx < sit.FrontDistance {
				sit.HasFront = true
				sit.FrontDistance = dx
			}
		}
		if math.Abs(math.Abs(dy)-s.adjacentGap) < adjacentTol && dx > adjacentBehind && dx < adjacentAheadOf {
			sit.AdjacentBlocked = true
		}
	}
	return
}

// Transition 状态转移
// 功能：根据当前模式、态势与纵向速度计算下一模式
// 参数：m-当前模式，sit-交通态势，vx-受控车辆纵向速度
// 返回：下一模式
// 说明：纯函数，相同输入总是得到相同输出；任意输入组合均有定义
func (s *Supervisor) Transition(m Mode, sit Situation, vx float64) Mode {
	sf := s.DangerDistance(vx)
	sLong := s.MitigationDistance(vx)
	inDanger := sit.HasFront && sit.FrontDistance < sf
	inMitigation := sit.HasFront && sit.FrontDistance < sLong

	switch m.State {
	case LaneKeeping:
		switch {
		case sit.Emergency:
			return m.with(EmergencyBraking, LaneChangeNone, BrakeForced)
		case inDanger && !sit.AdjacentBlocked:
			m.Progress = 0
			return m.with(LaneChange, LaneChangeActive, BrakeNormal)
		case inDanger && inMitigation:
			return m.with(Braking, LaneChangeNone, BrakeForced)
		case inDanger:
			return m.with(Following, LaneChangeNone, BrakeNormal)
		default:
			return m.with(LaneKeeping, LaneChangeNone, BrakeNormal)
		}
	case LaneChange:
		m.Progress = lo.Clamp(m.Progress+s.progressStep, 0, maxProgress)
		switch {
		case sit.Emergency:
			return m.with(EmergencyBraking, LaneChangeNone, BrakeForced)
		case sit.AdjacentBlocked && m.Progress < abortProgressLimit:
			return m.with(AbortLaneChange, LaneChangeAbort, BrakeNormal)
		case m.Progress >= maxProgress:
			m.Progress = 0
			return m.with(LaneKeeping, LaneChangeNone, BrakeNormal)
		default:
			return m.with(LaneChange, LaneChangeActive, BrakeNormal)
		}
	case AbortLaneChange:
		m.Progress = lo.Clamp(m.Progress-s.progressStep, 0, maxProgress)
		if m.Progress <= 0 {
			m.Progress = 0
			return m.with(LaneKeeping, LaneChangeNone, BrakeNormal)
		}
		return m.with(AbortLaneChange, LaneChangeAbort, BrakeNormal)
	case Following:
		switch {
		case sit.Emergency:
			return m.with(EmergencyBraking, LaneChangeNone, BrakeForced)
		case !sit.HasFront || sit.FrontDistance > sf:
			return m.with(LaneKeeping, LaneChangeNone, BrakeNormal)
		case inMitigation:
			return m.with(Braking, LaneChangeNone, BrakeForced)
		default:
			return m.with(Following, LaneChangeNone, BrakeNormal)
		}
	case Braking:
		switch {
		case sit.Emergency:
			return m.with(EmergencyBraking, LaneChangeNone, BrakeForced)
		case !sit.HasFront || sit.FrontDistance > sLong:
			return m.with(Following, LaneChangeNone, BrakeNormal)
		default:
			return m.with(Braking, LaneChangeNone, BrakeForced)
		}
	case EmergencyBraking:
		if vx < s.stopSpeed {
			return m.with(LaneKeeping, LaneChangeNone, BrakeNormal)
		}
		return m.with(EmergencyBraking, LaneChangeNone, BrakeForced)
	default:
		log.Panicf("supervisor: unknown state %v", m.State)
		return m
	}
}

// Evaluate 执行一个控制周期的决策
// 功能：态势分类后进行状态转移，并记录模式切换
// 参数：m-当前模式，ego-受控车辆状态，others-周车状态
// 返回：下一模式
func (s *Supervisor) Evaluate(m Mode, ego vehicle.State, others []vehicle.State) Mode {
	sit := s.Classify(ego, others)
	next := s.Transition(m, sit, ego.VX)
	if next.State != m.State {
		log.Infof("mode %v -> %v (front=%v@%.1fm, adjacentBlocked=%v, emergency=%v, vx=%.2f)",
			m.State, next.State, sit.HasFront, sit.FrontDistance, sit.AdjacentBlocked, sit.Emergency, ego.VX)
	}
	return next
}
