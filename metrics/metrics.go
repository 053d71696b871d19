// Package metrics 统计控制循环的求解结果、耗时与模式切换
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 一次仿真的指标集合
// 说明：使用独立的Registry，多次仿真互不干扰
type Metrics struct {
	Registry *prometheus.Registry

	// 求解结果计数，按status区分
	SolveTotal *prometheus.CounterVec
	// 单次求解耗时
	SolveDuration prometheus.Histogram
	// 单次求解的内层迭代次数
	SolveIterations prometheus.Histogram
	// 使用回退指令的次数
	FallbackTotal prometheus.Counter
	// 模式切换计数，按from、to区分
	ModeTransitions *prometheus.CounterVec
	// 已完成的控制周期数
	Steps prometheus.Counter
}

// New 创建指标集合
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		SolveTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "safelane_solve_total",
			Help: "Trajectory optimizations by solver status",
		}, []string{"status"}),
		SolveDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "safelane_solve_duration_seconds",
			Help:    "Wall time of one trajectory optimization",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		}),
		SolveIterations: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "safelane_solve_iterations",
			Help:    "Inner solver iterations of one trajectory optimization",
			Buckets: prometheus.ExponentialBuckets(1, 2, 11),
		}),
		FallbackTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "safelane_fallback_total",
			Help: "Control cycles that applied the fallback command",
		}),
		ModeTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "safelane_mode_transitions_total",
			Help: "Supervisor mode changes",
		}, []string{"from", "to"}),
		Steps: f.NewCounter(prometheus.CounterOpts{
			Name: "safelane_steps_total",
			Help: "Completed control cycles",
		}),
	}
}

// ObserveSolve 记录一次求解
func (m *Metrics) ObserveSolve(status string, elapsed time.Duration, iterations int, fallback bool) {
	m.SolveTotal.WithLabelValues(status).Inc()
	m.SolveDuration.Observe(elapsed.Seconds())
	m.SolveIterations.Observe(float64(iterations))
	if fallback {
		m.FallbackTotal.Inc()
	}
}

// ObserveMode 记录模式切换，from与to相同时忽略
func (m *Metrics) ObserveMode(from, to fmt.Stringer) {
	if from.String() == to.String() {
		return
	}
	m.ModeTransitions.WithLabelValues(from.String(), to.String()).Inc()
}

// WriteToTextfile 以Prometheus文本格式写出全部指标
func (m *Metrics) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
