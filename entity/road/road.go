package road

import (
	"errors"
	"fmt"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/safelane-sim/utils/config"
)

// ErrLaneOutOfRange 车道索引越界
var ErrLaneOutOfRange = errors.New("road: lane index out of range")

// Road 多车道直路
// 功能：提供车道数、车道宽度、道路边界与车道中心线查询
// 说明：车道从下边界YMin开始按索引0,1,...向上排列，索引0为最右侧车道
type Road struct {
	yMin      float64
	numLanes  int
	laneWidth float64

	laneCenters []float64
}

// New 创建道路
// 功能：根据道路配置预计算各车道中心线
// 参数：c-道路配置
// 返回：道路实例
func New(c config.Road) *Road {
	r := &Road{
		yMin:      c.YMin,
		numLanes:  c.NumLanes,
		laneWidth: c.LaneWidth,
	}
	r.laneCenters = lo.Times(c.NumLanes, func(i int) float64 {
		return c.YMin + (float64(i)+0.5)*c.LaneWidth
	})
	return r
}

func (r *Road) NumLanes() int {
	return r.numLanes
}

func (r *Road) LaneWidth() float64 {
	return r.laneWidth
}

// YMin 道路下边界（米）
func (r *Road) YMin() float64 {
	return r.yMin
}

// YMax 道路上边界（米）
func (r *Road) YMax() float64 {
	return r.yMin + float64(r.numLanes)*r.laneWidth
}

// LaneCenter 获取车道中心线横向坐标
// 功能：返回指定车道中心线的y坐标
// 参数：index-车道索引
// 返回：中心线坐标，索引越界时返回ErrLaneOutOfRange
func (r *Road) LaneCenter(index int) (float64, error) {
	if index < 0 || index >= r.numLanes {
		return 0, fmt.Errorf("%w: %d not in [0, %d)", ErrLaneOutOfRange, index, r.numLanes)
	}
	return r.laneCenters[index], nil
}

// LaneOf 获取横向坐标所在的车道索引
// 说明：超出道路范围的坐标返回最近的边缘车道
func (r *Road) LaneOf(y float64) int {
	i := int((y - r.yMin) / r.laneWidth)
	return lo.Clamp(i, 0, r.numLanes-1)
}
