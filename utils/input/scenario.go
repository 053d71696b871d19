package input

// VehicleSpec 场景中一辆车的初始状态
// 说明：Y为空时横向位置取Lane车道中心线
type VehicleSpec struct {
	ID   string   `yaml:"id"`
	Lane int      `yaml:"lane"`
	Y    *float64 `yaml:"y,omitempty"`
	X    float64  `yaml:"x"`
	VX   float64  `yaml:"vx"`
	VY   float64  `yaml:"vy,omitempty"`
	AX   float64  `yaml:"ax,omitempty"` // 周车的给定纵向加速度
	AY   float64  `yaml:"ay,omitempty"` // 周车的给定横向加速度
}

// Scenario 场景描述
type Scenario struct {
	Name   string        `yaml:"name"`
	Ego    VehicleSpec   `yaml:"ego"`
	Others []VehicleSpec `yaml:"others"`
}

// builtins 内置场景
// 1：前车减速，相邻车道空闲，可超车
// 2：前车进入危险区，相邻车道有快车驶来
// 3：危急工况，前车急减速
var builtins = map[int]Scenario{
	1: {
		Name: "overtake with free adjacent lane",
		Ego:  VehicleSpec{ID: "ego", Lane: 0, X: 0, VX: 25},
		Others: []VehicleSpec{
			{ID: "veh1", Lane: 0, X: 180, VX: 28, AX: -4},
			{ID: "veh2", Lane: 1, X: 250, VX: 31},
		},
	},
	2: {
		Name: "danger zone with blocked adjacent lane",
		Ego:  VehicleSpec{ID: "ego", Lane: 0, X: 0, VX: 30},
		Others: []VehicleSpec{
			{ID: "veh1", Lane: 0, X: 100, VX: 18},
			{ID: "veh2", Lane: 1, X: -50, VX: 36},
		},
	},
	3: {
		Name: "critical situation",
		Ego:  VehicleSpec{ID: "ego", Lane: 0, X: 0, VX: 30},
		Others: []VehicleSpec{
			{ID: "veh1", Lane: 0, X: 80, VX: 18, AX: -4},
			{ID: "veh2", Lane: 1, X: -100, VX: 36},
		},
	},
}
