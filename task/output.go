package task

import (
	"context"
	"errors"
	"fmt"

	"github.com/tsinghua-fib-lab/safelane-sim/output/plot"
	"github.com/tsinghua-fib-lab/safelane-sim/output/trajectory"
)

// Sinks 按输出配置创建轨迹日志写出目标
func (ctx *Context) Sinks() []trajectory.Sink {
	o := ctx.runtimeConfig.All.Output
	var sinks []trajectory.Sink
	if o.File != "" {
		sinks = append(sinks, trajectory.FileSink{Path: o.File})
	}
	if o.SQLite != "" {
		sinks = append(sinks, trajectory.SQLiteSink{Path: o.SQLite})
	}
	if o.Mongo != nil && o.Mongo.URI != "" {
		sinks = append(sinks, trajectory.MongoSink{URI: o.Mongo.URI, DB: o.Mongo.DB, Col: o.Mongo.Col})
	}
	return sinks
}

// Output 仿真结束后写出全部结果
// 功能：轨迹日志、结果图与指标文件，各项互不影响
// 返回：合并后的错误
func (ctx *Context) Output(goCtx context.Context) error {
	o := ctx.runtimeConfig.All.Output
	var errs []error
	if err := trajectory.WriteAll(goCtx, ctx.trajectory, ctx.Sinks()...); err != nil {
		errs = append(errs, err)
	}
	if o.PlotDir != "" {
		if _, err := plot.Render(o.PlotDir, ctx.trajectory, ctx.road, ctx.initRes.YRef); err != nil {
			errs = append(errs, fmt.Errorf("plot: %w", err))
		}
	}
	if o.MetricsFile != "" {
		if err := ctx.metrics.WriteToTextfile(o.MetricsFile); err != nil {
			errs = append(errs, fmt.Errorf("metrics: %w", err))
		}
	}
	return errors.Join(errs...)
}
