// 随机数引擎，包装了golang.org/x/exp/rand，提供场景扰动所需的随机数生成方法
package randengine

import (
	"flag"
	"sync"

	"golang.org/x/exp/rand"
)

var (
	seedOffset = flag.Uint64("rand.seed_offset", 0, "seed offset") // 种子偏移量，用于调整随机数生成
)

// Engine 随机数引擎
// 功能：提供可复现的随机数生成功能，支持线程安全操作
// 说明：基于golang.org/x/exp/rand库，相同种子产生相同序列
type Engine struct {
	*rand.Rand            // 底层随机数生成器
	mtx        sync.Mutex // 互斥锁，用于线程安全操作
}

// New 创建随机数引擎
// 功能：初始化一个新的随机数引擎实例
// 参数：seed-随机数种子
// 返回：随机数引擎指针
// 说明：种子偏移量允许在不修改配置的情况下调整随机数序列
func New(seed uint64) *Engine {
	return &Engine{Rand: rand.New(rand.NewSource(seed + *seedOffset))}
}

// Normal 生成正态分布随机数（非线程安全）
// 参数：mean-均值，std-标准差
// 返回：N(mean, std²)随机数；std<=0时直接返回mean
func (e *Engine) Normal(mean, std float64) float64 {
	if std <= 0 {
		return mean
	}
	return mean + std*e.NormFloat64()
}

// NormalSafe 生成正态分布随机数（线程安全）
func (e *Engine) NormalSafe(mean, std float64) float64 {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return e.Normal(mean, std)
}
