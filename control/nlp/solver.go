package nlp

import "fmt"

// Status 求解结果类型
type Status int

const (
	Solved           Status = iota // 得到满足容差的原始解
	Infeasible                     // 迭代预算内未能满足约束
	NumericalFailure               // 数值异常（NaN/Inf、内部错误）
)

func (s Status) String() string {
	switch s {
	case Solved:
		return "solved"
	case Infeasible:
		return "infeasible"
	case NumericalFailure:
		return "numerical_failure"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result 求解结果
type Result struct {
	Status     Status
	X          []float64 // 原始解，仅Status为Solved时有意义
	Objective  float64
	Violation  float64 // 最大约束违反量
	Iterations int     // 内层迭代总次数
	Err        error   // NumericalFailure时的原因
}

// Solver 非线性规划求解能力
// 说明：同步阻塞调用，迭代次数与容差由实现的配置决定
type Solver interface {
	Solve(p *Problem) Result
}

// Options 求解器配置
type Options struct {
	MaxIter                int     // 每次内层求解的迭代上限，外层轮数另有上限
	AcceptableTol          float64 // 梯度/乘子更新收敛容差
	AcceptableObjChangeTol float64 // 目标函数相对变化容差
	ConstraintTol          float64 // 可接受的最大约束违反量
	Verbose                bool    // 输出内层迭代过程
}
