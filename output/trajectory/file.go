package trajectory

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// FileSink 以protobuf二进制（google.protobuf.Struct）写出到文件
type FileSink struct {
	Path string
}

func (s FileSink) Name() string {
	return "file " + s.Path
}

func (s FileSink) Write(_ context.Context, l *Log) error {
	st, err := ToStruct(l)
	if err != nil {
		return err
	}
	data, err := proto.Marshal(st)
	if err != nil {
		return fmt.Errorf("trajectory: marshal: %w", err)
	}
	return os.WriteFile(s.Path, data, 0o644)
}

// LoadFile 读取FileSink写出的轨迹日志
func LoadFile(path string) (*Log, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var st structpb.Struct
	if err := proto.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupted, err)
	}
	return FromStruct(&st)
}

// ToStruct 转换为google.protobuf.Struct
func ToStruct(l *Log) (*structpb.Struct, error) {
	records := make([]any, len(l.Records))
	for i, r := range l.Records {
		others := make(map[string]any, len(r.Others))
		for id, o := range r.Others {
			others[id] = map[string]any{"x": o.X, "y": o.Y, "vx": o.VX}
		}
		records[i] = map[string]any{
			"step":   float64(r.Step),
			"t":      r.T,
			"ego":    map[string]any{"x": r.EgoX, "y": r.EgoY, "vx": r.EgoVX, "ax": r.EgoAX, "ay": r.EgoAY},
			"mode":   r.Mode,
			"status": r.Status,
			"others": others,
		}
	}
	st, err := structpb.NewStruct(map[string]any{
		"run_id":   l.RunID.String(),
		"scenario": l.Scenario,
		"dt":       l.DT,
		"records":  records,
	})
	if err != nil {
		return nil, fmt.Errorf("trajectory: to struct: %w", err)
	}
	return st, nil
}

// FromStruct 由google.protobuf.Struct还原轨迹日志
// 说明：缺失或类型不符的字段返回ErrCorrupted，不以零值代替
func FromStruct(st *structpb.Struct) (*Log, error) {
	m := st.AsMap()
	l := &Log{}
	var err error
	runID, _ := m["run_id"].(string)
	if l.RunID, err = uuid.Parse(runID); err != nil {
		return nil, fmt.Errorf("%w: run_id: %w", ErrCorrupted, err)
	}
	l.Scenario, _ = m["scenario"].(string)
	if l.DT, err = number(m, "dt"); err != nil {
		return nil, err
	}
	records, ok := m["records"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: records", ErrCorrupted)
	}
	l.Records = make([]Record, len(records))
	for i, raw := range records {
		rm, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: record %d", ErrCorrupted, i)
		}
		ego, ok := rm["ego"].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: record %d ego", ErrCorrupted, i)
		}
		r := Record{Others: map[string]OtherRecord{}}
		var step float64
		if err := numbers(
			field{rm, "step", &step}, field{rm, "t", &r.T},
			field{ego, "x", &r.EgoX}, field{ego, "y", &r.EgoY}, field{ego, "vx", &r.EgoVX},
			field{ego, "ax", &r.EgoAX}, field{ego, "ay", &r.EgoAY},
		); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		r.Step = int32(step)
		r.Mode, _ = rm["mode"].(string)
		r.Status, _ = rm["status"].(string)
		others, _ := rm["others"].(map[string]any)
		for id, raw := range others {
			om, ok := raw.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: record %d vehicle %s", ErrCorrupted, i, id)
			}
			var o OtherRecord
			if err := numbers(field{om, "x", &o.X}, field{om, "y", &o.Y}, field{om, "vx", &o.VX}); err != nil {
				return nil, fmt.Errorf("record %d vehicle %s: %w", i, id, err)
			}
			r.Others[id] = o
		}
		l.Records[i] = r
	}
	return l, nil
}

type field struct {
	m   map[string]any
	key string
	dst *float64
}

func numbers(fs ...field) error {
	for _, f := range fs {
		v, err := number(f.m, f.key)
		if err != nil {
			return err
		}
		*f.dst = v
	}
	return nil
}

func number(m map[string]any, key string) (float64, error) {
	f, ok := m[key].(float64)
	if !ok {
		return 0, fmt.Errorf("%w: %s is %T", ErrCorrupted, key, m[key])
	}
	return f, nil
}
