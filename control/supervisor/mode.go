package supervisor

import "fmt"

// State 决策状态机的运行模式
type State int

const (
	LaneKeeping      State = iota // 车道保持
	LaneChange                    // 变道
	AbortLaneChange               // 中止变道
	Following                     // 跟车
	Braking                       // 制动
	EmergencyBraking              // 紧急制动
)

var stateNames = map[State]string{
	LaneKeeping:      "Lane Keeping",
	LaneChange:       "Lane Change",
	AbortLaneChange:  "Abort Lane Change",
	Following:        "Following",
	Braking:          "Braking",
	EmergencyBraking: "Emergency Braking",
}

// States 全部运行模式
var States = []State{LaneKeeping, LaneChange, AbortLaneChange, Following, Braking, EmergencyBraking}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// 变道激活信号δ
const (
	LaneChangeAbort    = -1 // 回到原车道
	LaneChangeNone     = 0  // 不允许横向偏移
	LaneChangeActive   = 1  // 向相邻车道偏移
	BrakeForced        = 0  // 强制制动（Big-M约束生效）
	BrakeNormal        = 1  // 正常行驶
	maxProgress        = 100.0
	abortProgressLimit = 50.0 // 变道进度低于该值时相邻车道被占可中止变道
)

// Mode 决策状态机的完整状态
// 功能：包含运行模式、变道进度与两个激活信号
// 说明：以值的形式在控制循环中逐周期传递，Evaluate不修改入参
type Mode struct {
	State      State   // 运行模式
	Progress   float64 // 变道完成度（0-100）
	LaneChange int     // 变道激活信号δ：-1中止，0无，1变道
	Brake      int     // 制动许可η：0强制制动，1正常
}

// Initial 仿真开始时的状态：车道保持、正常行驶
func Initial() Mode {
	return Mode{State: LaneKeeping, LaneChange: LaneChangeNone, Brake: BrakeNormal}
}

func (m Mode) String() string {
	return fmt.Sprintf("%v(progress=%.0f, delta=%d, eta=%d)", m.State, m.Progress, m.LaneChange, m.Brake)
}

func (m Mode) with(s State, laneChange, brake int) Mode {
	m.State = s
	m.LaneChange = laneChange
	m.Brake = brake
	return m
}
