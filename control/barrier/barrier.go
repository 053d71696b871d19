// Package barrier 实现随速度自适应的Sigmoid碰撞屏障函数
package barrier

import (
	"errors"
	"math"

	"github.com/tsinghua-fib-lab/safelane-sim/utils/config"
)

const (
	minSpeed      = 1e-3  // 整定时的速度下限，避免除零
	yawRateFactor = 0.85  // 最大横摆角速度中的附着利用系数
	lambdaExp     = 1.317 // λ = e^1.317，Sigmoid二阶导极值点对应的常数
)

// ErrNotTuned 屏障陡度尚未整定
var ErrNotTuned = errors.New("barrier: steepness not tuned")

// Barrier Sigmoid屏障函数
// 功能：生成 δ·yLat / (1 + exp(-ζ(s_f - Δx))) 形式的横向安全裕度
// 说明：陡度ζ由当前纵向速度每周期重新整定，整定前不可求值
type Barrier struct {
	yLat          float64 // 饱和幅值（车道中心距）
	friction      float64
	gravity       float64
	trackingError float64
	lookahead     float64

	zeta  float64
	tuned bool
}

// New 创建屏障函数
func New(c config.Barrier) *Barrier {
	return &Barrier{
		yLat:          c.LateralOffset,
		friction:      c.Friction,
		gravity:       c.Gravity,
		trackingError: c.TrackingError,
		lookahead:     c.Lookahead,
	}
}

// LateralOffset 屏障饱和幅值（米）
func (b *Barrier) LateralOffset() float64 {
	return b.yLat
}

// Steepness 当前陡度，未整定时返回ErrNotTuned
func (b *Barrier) Steepness() (float64, error) {
	if !b.tuned {
		return 0, ErrNotTuned
	}
	return b.zeta, nil
}

// ComputeSteepness 根据纵向速度计算陡度
// 功能：由车辆动力学极限给出陡度上界，由跟踪误差与预瞄距离给出下界，取二者均值
// 参数：vx-纵向速度，yLat-饱和幅值，mu-附着系数，g-重力加速度，err-跟踪误差，s-预瞄距离
// 返回：陡度ζ
// 算法说明：
// 1. ψ̇max = 0.85·μ·g / vx
// 2. ρmax = ψ̇max / vx
// 3. ζmax = sqrt(ρmax·(λ+1)³ / (yLat·λ·(λ-1)))，λ = e^1.317
// 4. ζmin = -2·ln(err/(1-err)) / s
func ComputeSteepness(vx, yLat, mu, g, err, s float64) float64 {
	if vx < minSpeed {
		vx = minSpeed
	}
	yawRateMax := yawRateFactor * mu * g / vx
	curvatureMax := yawRateMax / vx
	lambda := math.Exp(lambdaExp)
	zetaMax := math.Sqrt(curvatureMax * math.Pow(lambda+1, 3) / (yLat * lambda * (lambda - 1)))
	zetaMin := -2 * math.Log(err/(1-err)) / s
	return (zetaMin + zetaMax) / 2
}

// Tune 按当前纵向速度整定陡度
// 说明：每个控制周期在优化之前调用一次
func (b *Barrier) Tune(vx float64) float64 {
	b.zeta = ComputeSteepness(vx, b.yLat, b.friction, b.gravity, b.trackingError, b.lookahead)
	b.tuned = true
	log.Debugf("tuned steepness %.6f at vx=%.3f", b.zeta, vx)
	return b.zeta
}

// Evaluate 计算屏障值
// 功能：返回 activation·yLat / (1 + exp(-ζ·(safetyDistance - Δx)))
// 参数：dx-与他车的纵向距离，safetyDistance-安全距离，activation-变道激活信号（-1、0、1）
// 返回：屏障值；未整定时返回ErrNotTuned
func (b *Barrier) Evaluate(dx, safetyDistance float64, activation int) (float64, error) {
	if !b.tuned {
		return 0, ErrNotTuned
	}
	return float64(activation) * b.yLat * sigmoid(b.zeta*(safetyDistance-dx)), nil
}

// Gradient 屏障值对 Δx 与 safetyDistance 的偏导数
// 说明：两者互为相反数，d/d(safetyDistance) = activation·yLat·ζ·σ(1-σ)
func (b *Barrier) Gradient(dx, safetyDistance float64, activation int) (dDx, dSafety float64, err error) {
	if !b.tuned {
		return 0, 0, ErrNotTuned
	}
	sg := sigmoid(b.zeta * (safetyDistance - dx))
	dSafety = float64(activation) * b.yLat * b.zeta * sg * (1 - sg)
	return -dSafety, dSafety, nil
}

// sigmoid 数值稳定的逻辑函数
func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
