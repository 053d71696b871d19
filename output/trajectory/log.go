// Package trajectory 记录仿真轨迹并写出到文件或数据库
package trajectory

import (
	"context"
	"errors"
	"maps"
	"slices"

	"github.com/google/uuid"
	"github.com/tsinghua-fib-lab/safelane-sim/entity/vehicle"
)

// ErrCorrupted 读取到的轨迹日志结构不完整
var ErrCorrupted = errors.New("trajectory: corrupted log")

// OtherRecord 周车在一个控制周期末的状态
type OtherRecord struct {
	X  float64
	Y  float64
	VX float64
}

// Record 一个控制周期的记录
// 说明：受控车辆与周车的状态均为本周期积分之后的值，T为推进后的仿真时间。
// 周车与受控车辆同一时刻采样，因此Others比决策时看到的周车状态晚一个步长；
// 需要决策时刻的周车状态时取上一条记录（第一条记录之前为场景初始状态）
type Record struct {
	Step   int32
	T      float64
	EgoX   float64
	EgoY   float64
	EgoVX  float64
	EgoAX  float64
	EgoAY  float64
	Mode   string // 决策状态
	Status string // 求解结果
	Others map[string]OtherRecord
}

// Log 一次仿真的完整轨迹日志
type Log struct {
	RunID    uuid.UUID
	Scenario string
	DT       float64
	Records  []Record
}

// New 创建空日志并分配运行ID
func New(scenario string, dt float64) *Log {
	return &Log{RunID: uuid.New(), Scenario: scenario, DT: dt}
}

// Append 追加一条记录
// 参数：step-步数，t-时间，ego-受控车辆，others-周车，mode/status-决策状态与求解结果
func (l *Log) Append(step int32, t float64, ego vehicle.State, others []*vehicle.Vehicle, mode, status string) {
	r := Record{
		Step:   step,
		T:      t,
		EgoX:   ego.X,
		EgoY:   ego.Y,
		EgoVX:  ego.VX,
		EgoAX:  ego.AX,
		EgoAY:  ego.AY,
		Mode:   mode,
		Status: status,
		Others: make(map[string]OtherRecord, len(others)),
	}
	for _, v := range others {
		s := v.State()
		r.Others[v.ID()] = OtherRecord{X: s.X, Y: s.Y, VX: s.VX}
	}
	l.Records = append(l.Records, r)
}

// OtherIDs 日志中出现过的全部周车ID（升序）
func (l *Log) OtherIDs() []string {
	set := map[string]struct{}{}
	for _, r := range l.Records {
		for id := range r.Others {
			set[id] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(set))
}

// EgoY 受控车辆横向位置序列
func (l *Log) EgoY() []float64 {
	ys := make([]float64, len(l.Records))
	for i, r := range l.Records {
		ys[i] = r.EgoY
	}
	return ys
}

// Sink 轨迹日志的写出目标
type Sink interface {
	Name() string
	Write(ctx context.Context, l *Log) error
}

// WriteAll 依次写出到全部目标
// 说明：单个目标失败只记录错误，不影响其余目标，返回合并后的错误
func WriteAll(ctx context.Context, l *Log, sinks ...Sink) error {
	var errs []error
	for _, s := range sinks {
		if err := s.Write(ctx, l); err != nil {
			log.Errorf("write trajectory to %s failed: %v", s.Name(), err)
			errs = append(errs, err)
			continue
		}
		log.Infof("trajectory %v (%d records) written to %s", l.RunID, len(l.Records), s.Name())
	}
	return errors.Join(errs...)
}
