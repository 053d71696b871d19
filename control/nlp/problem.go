// Package nlp 描述并求解带等式/不等式约束的非线性规划问题
package nlp

import (
	"fmt"
	"math"
	"slices"
)

// Kind 约束类型
type Kind int

const (
	Equality   Kind = iota // c(x) = 0
	Inequality             // c(x) >= 0
)

func (k Kind) String() string {
	if k == Equality {
		return "eq"
	}
	return "ineq"
}

// Term 线性项 coef·x[index]
type Term struct {
	Index int
	Coef  float64
}

// Expr 线性表达式 Σ coef·x[i] + Const
type Expr struct {
	Terms []Term
	Const float64
}

// Lin 构造线性表达式
func Lin(c float64, terms ...Term) Expr {
	return Expr{Terms: terms, Const: c}
}

// T 构造线性项
func T(index int, coef float64) Term {
	return Term{Index: index, Coef: coef}
}

// Eval 表达式取值
func (e Expr) Eval(x []float64) float64 {
	v := e.Const
	for _, t := range e.Terms {
		v += t.Coef * x[t.Index]
	}
	return v
}

func (e Expr) addGrad(g []float64, scale float64) {
	for _, t := range e.Terms {
		g[t.Index] += scale * t.Coef
	}
}

// Square 目标函数中的加权平方项 weight·expr²
type Square struct {
	Weight float64
	Expr   Expr
}

// Constraint 约束
// 说明：Func为nil时使用线性形式Linear；否则Func与Grad共同描述非线性约束，
// Grad以稀疏方式通过add回调给出梯度分量
type Constraint struct {
	Name   string
	Kind   Kind
	Linear Expr
	Func   func(x []float64) float64
	Grad   func(x []float64, add func(index int, d float64))
}

// Value 约束函数取值
func (c *Constraint) Value(x []float64) float64 {
	if c.Func != nil {
		return c.Func(x)
	}
	return c.Linear.Eval(x)
}

// Violation 约束违反量（非负）
func (c *Constraint) Violation(x []float64) float64 {
	v := c.Value(x)
	if c.Kind == Equality {
		return math.Abs(v)
	}
	return math.Max(0, -v)
}

func (c *Constraint) addGrad(x, g []float64, scale float64) {
	if c.Func == nil {
		c.Linear.addGrad(g, scale)
		return
	}
	c.Grad(x, func(index int, d float64) {
		g[index] += scale * d
	})
}

// Variable 决策变量
type Variable struct {
	Name string
	Init float64 // 初值
}

// Problem 非线性规划问题描述
// 功能：min Σ w·expr² s.t. c_eq(x) = 0, c_ineq(x) >= 0
// 说明：由Builder构建后不再修改
type Problem struct {
	vars        []Variable
	objective   []Square
	constraints []Constraint
}

// NumVars 决策变量个数
func (p *Problem) NumVars() int {
	return len(p.vars)
}

// NumConstraints 约束个数
func (p *Problem) NumConstraints() int {
	return len(p.constraints)
}

// Variable 第i个决策变量
func (p *Problem) Variable(i int) Variable {
	return p.vars[i]
}

// Constraints 全部约束（只读）
func (p *Problem) Constraints() []Constraint {
	return p.constraints
}

// InitialGuess 初值向量
func (p *Problem) InitialGuess() []float64 {
	x := make([]float64, len(p.vars))
	for i, v := range p.vars {
		x[i] = v.Init
	}
	return x
}

// Objective 目标函数值
func (p *Problem) Objective(x []float64) float64 {
	f := 0.
	for _, sq := range p.objective {
		r := sq.Expr.Eval(x)
		f += sq.Weight * r * r
	}
	return f
}

// ObjectiveGrad 目标函数梯度（累加到g）
func (p *Problem) ObjectiveGrad(x, g []float64) {
	for _, sq := range p.objective {
		r := sq.Expr.Eval(x)
		sq.Expr.addGrad(g, 2*sq.Weight*r)
	}
}

// MaxViolation 最大约束违反量及对应约束名
// 说明：任一约束取值为NaN时返回NaN
func (p *Problem) MaxViolation(x []float64) (float64, string) {
	worst, name := 0., ""
	for i := range p.constraints {
		v := p.constraints[i].Violation(x)
		if math.IsNaN(v) {
			return v, p.constraints[i].Name
		}
		if v > worst {
			worst, name = v, p.constraints[i].Name
		}
	}
	return worst, name
}

// Builder 问题构建器
type Builder struct {
	p     Problem
	built bool
}

// NewBuilder 创建问题构建器
func NewBuilder() *Builder {
	return &Builder{}
}

// Vars 声明一组决策变量
// 参数：name-变量组名，n-个数，init-第i个变量的初值
// 返回：变量索引
func (b *Builder) Vars(name string, n int, init func(i int) float64) []int {
	idx := make([]int, n)
	for i := range n {
		idx[i] = len(b.p.vars)
		v := Variable{Name: fmt.Sprintf("%s[%d]", name, i)}
		if init != nil {
			v.Init = init(i)
		}
		b.p.vars = append(b.p.vars, v)
	}
	return idx
}

// Minimize 在目标函数中加入 weight·expr²
func (b *Builder) Minimize(weight float64, e Expr) {
	b.p.objective = append(b.p.objective, Square{Weight: weight, Expr: e})
}

// Eq 加入线性等式约束 e = 0
func (b *Builder) Eq(name string, e Expr) {
	b.p.constraints = append(b.p.constraints, Constraint{Name: name, Kind: Equality, Linear: e})
}

// Geq 加入线性不等式约束 e >= 0
func (b *Builder) Geq(name string, e Expr) {
	b.p.constraints = append(b.p.constraints, Constraint{Name: name, Kind: Inequality, Linear: e})
}

// Nonlinear 加入非线性约束
func (b *Builder) Nonlinear(
	name string, kind Kind,
	f func(x []float64) float64,
	grad func(x []float64, add func(index int, d float64)),
) {
	b.p.constraints = append(b.p.constraints, Constraint{Name: name, Kind: kind, Func: f, Grad: grad})
}

// Build 生成问题描述
// 说明：Build之后Builder不可再使用
func (b *Builder) Build() *Problem {
	if b.built {
		log.Panic("nlp: Builder.Build called twice")
	}
	b.built = true
	return &Problem{
		vars:        slices.Clip(b.p.vars),
		objective:   slices.Clip(b.p.objective),
		constraints: slices.Clip(b.p.constraints),
	}
}
