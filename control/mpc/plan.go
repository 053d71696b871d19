package mpc

import (
	"errors"
	"fmt"

	"github.com/tsinghua-fib-lab/safelane-sim/control/nlp"
)

// ErrInvalidInput 优化器输入非法（受控车辆为空、状态非有限值或屏障未整定）
var ErrInvalidInput = errors.New("mpc: invalid input")

// Command 加速度指令
type Command struct {
	Longitudinal float64 // 纵向加速度（米/秒²）
	Lateral      float64 // 横向加速度（米/秒²）
}

func (c Command) String() string {
	return fmt.Sprintf("(%.4f, %.4f)", c.Longitudinal, c.Lateral)
}

// Plan 一次优化的结果
// 说明：Status不为Solved时Command为回退指令
type Plan struct {
	Status     nlp.Status
	Command    Command
	Objective  float64
	Violation  float64
	Iterations int
	Err        error // 求解失败原因，仅用于诊断
}

// Fallback 是否使用了回退指令
func (p Plan) Fallback() bool {
	return p.Status != nlp.Solved
}
