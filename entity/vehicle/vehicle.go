package vehicle

import (
	"fmt"
	"slices"
)

// Role 车辆身份
type Role int

const (
	Ego   Role = iota // 受控车辆
	Other             // 周围车辆（开环给定加速度）
)

func (r Role) String() string {
	switch r {
	case Ego:
		return "ego"
	case Other:
		return "other"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// Vehicle 车辆实体
// 功能：持有车辆的几何尺寸、当前状态与历史轨迹
// 说明：状态只能通过Advance修改，历史轨迹只追加不删除
type Vehicle struct {
	id     string
	role   Role
	length float64 // 车长（米）
	width  float64 // 车宽（米）
	maxV   float64 // 速度上限（米/秒）

	state      State
	trajectory []State
	// 周围车辆的给定加速度
	prescribedAX, prescribedAY float64
}

// New 创建车辆
// 功能：校验初始状态向量并初始化历史轨迹
// 参数：id-车辆标识，role-身份，initial-初始状态向量，length/width-几何尺寸，maxV-速度上限
// 返回：车辆实例；初始状态不是6维有限向量时返回ErrInvalidState
// 说明：周围车辆的给定加速度取自初始状态的加速度分量
func New(id string, role Role, initial []float64, length, width, maxV float64) (*Vehicle, error) {
	s, err := StateFromVector(initial)
	if err != nil {
		return nil, fmt.Errorf("vehicle %s: %w", id, err)
	}
	return &Vehicle{
		id:           id,
		role:         role,
		length:       length,
		width:        width,
		maxV:         maxV,
		state:        s,
		trajectory:   []State{s},
		prescribedAX: s.AX,
		prescribedAY: s.AY,
	}, nil
}

func (v *Vehicle) ID() string {
	return v.id
}

func (v *Vehicle) Role() Role {
	return v.role
}

func (v *Vehicle) IsEgo() bool {
	return v.role == Ego
}

func (v *Vehicle) Length() float64 {
	return v.length
}

func (v *Vehicle) Width() float64 {
	return v.width
}

func (v *Vehicle) MaxV() float64 {
	return v.maxV
}

// State 当前状态
func (v *Vehicle) State() State {
	return v.state
}

// PrescribedAcceleration 周围车辆的开环加速度
func (v *Vehicle) PrescribedAcceleration() (ax, ay float64) {
	return v.prescribedAX, v.prescribedAY
}

// Trajectory 历史轨迹（含初始状态）
// 说明：返回副本，调用方修改不影响车辆历史
func (v *Vehicle) Trajectory() []State {
	return slices.Clone(v.trajectory)
}

// Advance 以给定加速度推进一个时间步
// 功能：半隐式欧拉积分并将新状态追加到历史轨迹
// 参数：ax/ay-纵向/横向加速度，dt-时间步长
func (v *Vehicle) Advance(ax, ay, dt float64) {
	v.state = Step(v.state, ax, ay, dt, v.maxV)
	v.trajectory = append(v.trajectory, v.state)
	log.Tracef("vehicle %s advanced to %+v", v.id, v.state)
}

// AdvancePrescribed 以给定开环加速度推进一个时间步
func (v *Vehicle) AdvancePrescribed(dt float64) {
	v.Advance(v.prescribedAX, v.prescribedAY, dt)
}
