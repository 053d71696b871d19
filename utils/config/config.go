package config

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v2"
)

// ErrInvalidConfig 配置项取值非法
var ErrInvalidConfig = errors.New("config: invalid value")

// Default 默认配置
// 功能：返回默认参数（dt=0.2s，30s仿真，双车道，Np=20，Nc=3）
// 说明：YAML配置在该默认值之上覆盖，未出现的字段保持默认
func Default() Config {
	return Config{
		Control: Control{
			Step: ControlStep{Start: 0, Total: 150, Interval: 0.2},
		},
		Road: Road{YMin: 0, NumLanes: 2, LaneWidth: 3.5},
		Vehicle: Vehicle{
			Length:   1,
			Width:    0.5,
			MaxSpeed: 40,
		},
		Scenario: Scenario{
			Builtin:       1,
			ReferenceLane: 0,
			TargetSpeed:   30,
		},
		Supervisor: Supervisor{
			TTC:              2,
			TIV:              4,
			ProgressStep:     2,
			AdjacentLaneGap:  3.5,
			StopSpeed:        0.1,
			EmergencyAhead:   5,
			EmergencyLateral: 1,
		},
		Barrier: Barrier{
			LateralOffset: 3.5,
			Friction:      0.8,
			Gravity:       9.81,
			TrackingError: 0.05,
			Lookahead:     50,
		},
		MPC: MPC{
			PredictionHorizon: 20,
			ControlHorizon:    3,
			AxMin:             -4,
			AxMax:             2,
			AyMin:             -2,
			AyMax:             2,
			JerkXMax:          1.5,
			JerkYMax:          0.5,
			QLat:              100,
			QVel:              10,
			RJerkX:            0.1,
			RJerkY:            0.1,
			SlackWeight:       1000,
			MaxSlipAngleDeg:   10,
			BigM:              1e3,
			Kappa:             10,
			FallbackAx:        -2,
			PredictOthers:     true,
		},
		Solver: Solver{
			MaxIter:                1000,
			AcceptableTol:          1e-4,
			AcceptableObjChangeTol: 1e-4,
			ConstraintViolationTol: 1e-3,
		},
	}
}

// Load 解析YAML配置
// 功能：在默认配置之上严格解析YAML（未知字段报错），并校验取值
// 参数：data-YAML文本
// 返回：配置对象，错误
func Load(data []byte) (Config, error) {
	c := Default()
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return c, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// Validate 校验配置取值
// 功能：检查会导致仿真无意义或数值崩溃的参数
func (c Config) Validate() error {
	switch {
	case c.Control.Step.Interval <= 0:
		return fmt.Errorf("%w: control.step.interval must be positive, got %v", ErrInvalidConfig, c.Control.Step.Interval)
	case c.Control.Step.Total <= 0:
		return fmt.Errorf("%w: control.step.total must be positive, got %v", ErrInvalidConfig, c.Control.Step.Total)
	case c.Road.NumLanes <= 0 || c.Road.LaneWidth <= 0:
		return fmt.Errorf("%w: road needs at least one lane of positive width", ErrInvalidConfig)
	case c.Vehicle.MaxSpeed <= 0:
		return fmt.Errorf("%w: vehicle.max_speed must be positive", ErrInvalidConfig)
	case c.MPC.PredictionHorizon < 2:
		return fmt.Errorf("%w: mpc.prediction_horizon must be >= 2", ErrInvalidConfig)
	case c.MPC.ControlHorizon < 1 || c.MPC.ControlHorizon > c.MPC.PredictionHorizon:
		return fmt.Errorf("%w: mpc.control_horizon must be in [1, prediction_horizon]", ErrInvalidConfig)
	case c.MPC.AxMin > c.MPC.AxMax || c.MPC.AyMin > c.MPC.AyMax:
		return fmt.Errorf("%w: mpc acceleration bounds are inverted", ErrInvalidConfig)
	case c.Solver.MaxIter <= 0:
		return fmt.Errorf("%w: solver.max_iter must be positive", ErrInvalidConfig)
	case c.Barrier.TrackingError <= 0 || c.Barrier.TrackingError >= 0.5:
		return fmt.Errorf("%w: barrier.tracking_error must be in (0, 0.5)", ErrInvalidConfig)
	case c.Barrier.LateralOffset <= 0 || c.Barrier.Lookahead <= 0:
		return fmt.Errorf("%w: barrier.lateral_offset and barrier.lookahead must be positive", ErrInvalidConfig)
	}
	return nil
}

// RuntimeConfig 运行时配置
// 功能：存储仿真运行时的配置信息
// 说明：将YAML配置转换为运行时可用的配置对象
type RuntimeConfig struct {
	All Config  // 全部配置
	C   Control // 全局控制配置

	RoadYMax float64 // 道路上边界（米）
}

// NewRuntimeConfig 根据配置初始化运行时配置
// 功能：创建运行时配置对象，计算派生量
// 参数：config-原始配置对象
// 返回：初始化的运行时配置指针
func NewRuntimeConfig(config Config) *RuntimeConfig {
	rc := &RuntimeConfig{}

	rc.All = config
	rc.C = config.Control
	rc.RoadYMax = config.Road.YMin + float64(config.Road.NumLanes)*config.Road.LaneWidth

	return rc
}
