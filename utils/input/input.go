// Package input 加载仿真初始场景
package input

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/safelane-sim/entity/road"
	"github.com/tsinghua-fib-lab/safelane-sim/entity/vehicle"
	"github.com/tsinghua-fib-lab/safelane-sim/utils/config"
	"github.com/tsinghua-fib-lab/safelane-sim/utils/randengine"
	"gopkg.in/yaml.v2"
)

// 场景扰动中速度标准差与位置标准差之比
const speedJitterRatio = 0.1

var (
	// ErrUnknownScenario 内置场景编号不存在
	ErrUnknownScenario = errors.New("input: unknown builtin scenario")
	// ErrInvalidScenario 场景内容非法
	ErrInvalidScenario = errors.New("input: invalid scenario")
)

// Input 输入数据
// 功能：存储一次仿真所需的全部初始对象
type Input struct {
	Name   string
	Ego    *vehicle.Vehicle
	Others []*vehicle.Vehicle
	YRef   float64 // 参考车道中心线
	VDes   float64 // 期望速度
}

// Builtin 获取内置场景
func Builtin(n int) (Scenario, error) {
	s, ok := builtins[n]
	if !ok {
		return Scenario{}, fmt.Errorf("%w: %d (available: %v)", ErrUnknownScenario, n, BuiltinIDs())
	}
	return s, nil
}

// BuiltinIDs 全部内置场景编号（升序）
func BuiltinIDs() []int {
	ids := lo.Keys(builtins)
	slices.Sort(ids)
	return ids
}

// LoadFile 从YAML文件读取场景
func LoadFile(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("input: read scenario: %w", err)
	}
	return Parse(data)
}

// Parse 解析YAML场景
func Parse(data []byte) (Scenario, error) {
	var s Scenario
	if err := yaml.UnmarshalStrict(data, &s); err != nil {
		return Scenario{}, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}
	if s.Ego.ID == "" {
		s.Ego.ID = "ego"
	}
	for i := range s.Others {
		if s.Others[i].ID == "" {
			s.Others[i].ID = fmt.Sprintf("veh%d", i+1)
		}
	}
	ids := lo.Map(s.Others, func(v VehicleSpec, _ int) string { return v.ID })
	if dup := lo.FindDuplicates(append(ids, s.Ego.ID)); len(dup) > 0 {
		return Scenario{}, fmt.Errorf("%w: duplicated vehicle ids %v", ErrInvalidScenario, dup)
	}
	return s, nil
}

// Init 根据配置构建初始场景
// 功能：选择场景来源、按道路几何计算横向位置、可选地施加随机扰动并创建车辆
// 参数：c-配置，r-道路
// 返回：输入数据，错误
// 算法说明：
// 1. Scenario.File非空时读取文件，否则使用内置场景Scenario.Builtin
// 2. 参考横向位置取ReferenceLane车道中心线
// 3. Jitter>0时对周车纵向位置与速度施加高斯扰动（种子Seed）
func Init(c config.Config, r *road.Road) (*Input, error) {
	var (
		s   Scenario
		err error
	)
	if c.Scenario.File != "" {
		s, err = LoadFile(c.Scenario.File)
	} else {
		s, err = Builtin(c.Scenario.Builtin)
	}
	if err != nil {
		return nil, err
	}
	var rng *randengine.Engine
	if c.Scenario.Jitter > 0 {
		rng = randengine.New(c.Scenario.Seed)
	}
	return Build(s, c, r, rng)
}

// Build 由场景描述创建车辆
// 参数：rng为nil时不扰动
func Build(s Scenario, c config.Config, r *road.Road, rng *randengine.Engine) (*Input, error) {
	yRef, err := r.LaneCenter(c.Scenario.ReferenceLane)
	if err != nil {
		return nil, fmt.Errorf("reference lane: %w", err)
	}
	in := &Input{Name: s.Name, YRef: yRef, VDes: c.Scenario.TargetSpeed}

	in.Ego, err = newVehicle(s.Ego, vehicle.Ego, c, r, nil)
	if err != nil {
		return nil, err
	}
	for _, spec := range s.Others {
		v, err := newVehicle(spec, vehicle.Other, c, r, rng)
		if err != nil {
			return nil, err
		}
		in.Others = append(in.Others, v)
	}
	log.Infof("scenario %q: ego %+v, %d surrounding vehicles", in.Name, in.Ego.State(), len(in.Others))
	return in, nil
}

func newVehicle(
	spec VehicleSpec, role vehicle.Role, c config.Config, r *road.Road, rng *randengine.Engine,
) (*vehicle.Vehicle, error) {
	var y float64
	if spec.Y != nil {
		y = *spec.Y
	} else {
		center, err := r.LaneCenter(spec.Lane)
		if err != nil {
			return nil, fmt.Errorf("vehicle %s: %w", spec.ID, err)
		}
		y = center
	}
	x, vx := spec.X, spec.VX
	if rng != nil {
		sigma := c.Scenario.Jitter
		x = rng.Normal(x, sigma)
		vx = lo.Clamp(rng.Normal(vx, sigma*speedJitterRatio), 0, c.Vehicle.MaxSpeed)
	}
	return vehicle.New(spec.ID, role,
		[]float64{x, y, vx, spec.VY, spec.AX, spec.AY},
		c.Vehicle.Length, c.Vehicle.Width, c.Vehicle.MaxSpeed,
	)
}
