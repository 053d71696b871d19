package vehicle

import (
	"errors"
	"fmt"
	"math"

	"github.com/samber/lo"
)

// StateDim 车辆状态向量维数：[x, y, vx, vy, ax, ay]
const StateDim = 6

// ErrInvalidState 状态向量非法（维数错误或包含非有限值）
var ErrInvalidState = errors.New("vehicle: invalid state")

// State 点质量车辆运动学状态
type State struct {
	X  float64 // 纵向位置（米）
	Y  float64 // 横向位置（米）
	VX float64 // 纵向速度（米/秒）
	VY float64 // 横向速度（米/秒）
	AX float64 // 纵向加速度（米/秒²）
	AY float64 // 横向加速度（米/秒²）
}

// StateFromVector 由状态向量构造状态
// 功能：校验向量维数为6且各分量有限
// 参数：v-[x, y, vx, vy, ax, ay]
// 返回：状态，错误
func StateFromVector(v []float64) (State, error) {
	if len(v) != StateDim {
		return State{}, fmt.Errorf("%w: want %d components, got %d", ErrInvalidState, StateDim, len(v))
	}
	s := State{X: v[0], Y: v[1], VX: v[2], VY: v[3], AX: v[4], AY: v[5]}
	if !s.Finite() {
		return State{}, fmt.Errorf("%w: non-finite component in %v", ErrInvalidState, v)
	}
	return s, nil
}

// Vector 转换为状态向量
func (s State) Vector() []float64 {
	return []float64{s.X, s.Y, s.VX, s.VY, s.AX, s.AY}
}

// Finite 所有分量均为有限值
func (s State) Finite() bool {
	for _, x := range s.Vector() {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// Step 半隐式欧拉积分一步
// 功能：先更新并截断速度，再用更新后的速度推进位置
// 参数：s-当前状态，ax/ay-加速度，dt-时间步长，maxV-速度上限
// 返回：新状态（加速度分量记录为本步输入）
// 说明：横向速度与纵向速度使用相同的截断区间[0, maxV]，
// 因此负的横向加速度无法产生负的横向速度
func Step(s State, ax, ay, dt, maxV float64) State {
	vx := lo.Clamp(s.VX+ax*dt, 0, maxV)
	vy := lo.Clamp(s.VY+ay*dt, 0, maxV)
	return State{
		X:  s.X + vx*dt,
		Y:  s.Y + vy*dt,
		VX: vx,
		VY: vy,
		AX: ax,
		AY: ay,
	}
}
