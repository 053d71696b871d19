package config

// ControlStep 指定模拟器模拟时间范围和间隔的配置项
// 功能：定义仿真时间控制参数
// 说明：控制仿真的时间范围、步长
type ControlStep struct {
	Start    int32   `yaml:"start"`    // 开始步数
	Total    int32   `yaml:"total"`    // 总步数
	Interval float64 `yaml:"interval"` // 每步的时间间隔（秒）
}

// Control 模拟器控制配置
type Control struct {
	Step ControlStep `yaml:"step"`
}

// Road 道路几何配置
// 功能：描述多车道直路的横向几何
// 说明：车道中心线为 YMin + (i+0.5)*LaneWidth，道路上边界为 YMin + NumLanes*LaneWidth
type Road struct {
	YMin      float64 `yaml:"y_min"`      // 道路下边界（米）
	NumLanes  int     `yaml:"num_lanes"`  // 车道数
	LaneWidth float64 `yaml:"lane_width"` // 车道宽度（米）
}

// Vehicle 车辆公共属性配置
type Vehicle struct {
	Length   float64 `yaml:"length"`    // 车长（米）
	Width    float64 `yaml:"width"`     // 车宽（米）
	MaxSpeed float64 `yaml:"max_speed"` // 速度上限（米/秒），纵向与横向速度共用
}

// Scenario 场景配置
// 功能：指定初始场景来源与参考轨迹
// 说明：File非空时优先从YAML文件加载，否则使用内置场景Builtin（1、2、3）
type Scenario struct {
	Builtin       int     `yaml:"builtin"`          // 内置场景编号
	File          string  `yaml:"file,omitempty"`   // 场景文件路径
	ReferenceLane int     `yaml:"reference_lane"`   // 参考车道索引（横向跟踪目标）
	TargetSpeed   float64 `yaml:"target_speed"`     // 期望纵向速度（米/秒）
	Jitter        float64 `yaml:"jitter,omitempty"` // 初始状态扰动标准差，0表示不扰动
	Seed          uint64  `yaml:"seed,omitempty"`   // 扰动随机种子
}

// Supervisor 决策状态机配置
type Supervisor struct {
	TTC              float64 `yaml:"ttc"`               // 碰撞时间阈值（秒），缓解区距离 = TTC * vx
	TIV              float64 `yaml:"tiv"`               // 车间时距阈值（秒），危险区距离 = TIV * vx
	ProgressStep     float64 `yaml:"progress_step"`     // 每个控制周期的变道进度增量（%）
	AdjacentLaneGap  float64 `yaml:"adjacent_lane_gap"` // 相邻车道中心距（米）
	StopSpeed        float64 `yaml:"stop_speed"`        // 紧急制动结束判定速度（米/秒）
	EmergencyAhead   float64 `yaml:"emergency_ahead"`   // 紧急制动纵向判定距离（米）
	EmergencyLateral float64 `yaml:"emergency_lateral"` // 紧急制动横向判定距离（米）
}

// Barrier 碰撞屏障函数配置
type Barrier struct {
	LateralOffset float64 `yaml:"lateral_offset"` // 屏障饱和幅值（米），即车道中心距
	Friction      float64 `yaml:"friction"`       // 路面附着系数
	Gravity       float64 `yaml:"gravity"`        // 重力加速度
	TrackingError float64 `yaml:"tracking_error"` // 目标跟踪误差
	Lookahead     float64 `yaml:"lookahead"`      // 预瞄距离（米）
}

// MPC 模型预测控制器配置
type MPC struct {
	PredictionHorizon int     `yaml:"prediction_horizon"` // 预测时域步数
	ControlHorizon    int     `yaml:"control_horizon"`    // 控制时域步数
	AxMin             float64 `yaml:"ax_min"`             // 纵向加速度下限
	AxMax             float64 `yaml:"ax_max"`             // 纵向加速度上限
	AyMin             float64 `yaml:"ay_min"`             // 横向加速度下限
	AyMax             float64 `yaml:"ay_max"`             // 横向加速度上限
	JerkXMax          float64 `yaml:"jerk_x_max"`         // 纵向加速度变化量上限
	JerkYMax          float64 `yaml:"jerk_y_max"`         // 横向加速度变化量上限
	QLat              float64 `yaml:"q_lat"`              // 横向位置误差权重
	QVel              float64 `yaml:"q_vel"`              // 速度误差权重
	RJerkX            float64 `yaml:"r_jerk_x"`           // 纵向冲击度权重
	RJerkY            float64 `yaml:"r_jerk_y"`           // 横向冲击度权重
	SlackWeight       float64 `yaml:"slack_weight"`       // 松弛变量权重
	MaxSlipAngleDeg   float64 `yaml:"max_slip_angle_deg"` // 最大侧偏角（度）
	BigM              float64 `yaml:"big_m"`              // 制动约束Big-M常数
	Kappa             float64 `yaml:"kappa"`              // 制动约束松弛缩放
	FallbackAx        float64 `yaml:"fallback_ax"`        // 求解失败时的纵向加速度
	PredictOthers     bool    `yaml:"predict_others"`     // 是否按周车给定加速度预测其未来位置
}

// Solver 非线性规划求解器配置
type Solver struct {
	MaxIter                int     `yaml:"max_iter"`                  // 每轮乘子更新之间的最大L-BFGS迭代次数
	AcceptableTol          float64 `yaml:"acceptable_tol"`            // 可接受的约束违反/梯度容差
	AcceptableObjChangeTol float64 `yaml:"acceptable_obj_change_tol"` // 可接受的目标函数变化容差
	ConstraintViolationTol float64 `yaml:"constraint_violation_tol"`  // 判定可行的最大约束违反量
	Verbose                bool    `yaml:"verbose,omitempty"`         // 输出求解过程诊断信息
}

// Mongo MongoDB输出位置
type Mongo struct {
	URI string `yaml:"uri"`
	DB  string `yaml:"db"`
	Col string `yaml:"col"`
}

// Output 输出配置
// 说明：所有输出项为空时不输出，轨迹日志只在仿真结束时写出一次
type Output struct {
	File        string `yaml:"file,omitempty"`         // 轨迹日志文件（protobuf二进制）
	SQLite      string `yaml:"sqlite,omitempty"`       // 轨迹日志SQLite数据库
	Mongo       *Mongo `yaml:"mongo,omitempty"`        // 轨迹日志MongoDB
	PlotDir     string `yaml:"plot_dir,omitempty"`     // 结果图输出目录
	MetricsFile string `yaml:"metrics_file,omitempty"` // Prometheus文本格式指标文件
}

// Config YAML配置文件的根结构
// 功能：定义整个仿真系统的配置结构
type Config struct {
	Control    Control    `yaml:"control"`    // 模拟过程控制
	Road       Road       `yaml:"road"`       // 道路
	Vehicle    Vehicle    `yaml:"vehicle"`    // 车辆
	Scenario   Scenario   `yaml:"scenario"`   // 场景
	Supervisor Supervisor `yaml:"supervisor"` // 决策状态机
	Barrier    Barrier    `yaml:"barrier"`    // 屏障函数
	MPC        MPC        `yaml:"mpc"`        // 轨迹优化
	Solver     Solver     `yaml:"solver"`     // 求解器
	Output     Output     `yaml:"output"`     // 输出
}
