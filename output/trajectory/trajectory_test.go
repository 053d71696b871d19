package trajectory

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/safelane-sim/entity/vehicle"
	"go.mongodb.org/mongo-driver/bson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

func sampleLog(t *testing.T) *Log {
	t.Helper()
	ego, err := vehicle.New("ego", vehicle.Ego, []float64{0, 1.75, 25, 0, 0, 0}, 1, 0.5, 40)
	require.NoError(t, err)
	veh1, err := vehicle.New("veh1", vehicle.Other, []float64{180, 1.75, 28, 0, -4, 0}, 1, 0.5, 40)
	require.NoError(t, err)
	veh2, err := vehicle.New("veh2", vehicle.Other, []float64{250, 5.25, 31, 0, 0, 0}, 1, 0.5, 40)
	require.NoError(t, err)
	others := []*vehicle.Vehicle{veh1, veh2}

	l := New("overtake", 0.2)
	for step := int32(1); step <= 5; step++ {
		ego.Advance(0.5, 0.25, 0.2)
		for _, v := range others {
			v.AdvancePrescribed(0.2)
		}
		l.Append(step, float64(step)*0.2, ego.State(), others, "Lane Keeping", "solved")
	}
	return l
}

func TestAppend(t *testing.T) {
	l := sampleLog(t)
	require.Len(t, l.Records, 5)
	assert.Equal(t, []string{"veh1", "veh2"}, l.OtherIDs())
	last := l.Records[4]
	assert.Equal(t, int32(5), last.Step)
	assert.InDelta(t, 1.0, last.T, 1e-12)
	assert.InDelta(t, 25.5, last.EgoVX, 1e-12)
	assert.Equal(t, 0.5, last.EgoAX)
	assert.InDelta(t, 28-4*1.0, last.Others["veh1"].VX, 1e-9)
	assert.Len(t, l.EgoY(), 5)
}

func TestFileRoundTrip(t *testing.T) {
	l := sampleLog(t)
	path := filepath.Join(t.TempDir(), "trajectory.pb")
	require.NoError(t, FileSink{Path: path}.Write(context.Background(), l))

	got, err := LoadFile(path)
	require.NoError(t, err)
	if diff := cmp.Diff(l, got); diff != "" {
		t.Errorf("file round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFileCorrupted(t *testing.T) {
	st, err := ToStruct(sampleLog(t))
	require.NoError(t, err)
	delete(st.Fields, "records")
	_, err = FromStruct(st)
	assert.ErrorIs(t, err, ErrCorrupted)

	st, err = ToStruct(sampleLog(t))
	require.NoError(t, err)
	delete(st.Fields, "run_id")
	_, err = FromStruct(st)
	assert.ErrorIs(t, err, ErrCorrupted)
}

func TestLoadFileTruncatedFields(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(rec map[string]any)
	}{
		{"missing t", func(rec map[string]any) { delete(rec, "t") }},
		{"ego y is text", func(rec map[string]any) { rec["ego"].(map[string]any)["y"] = "1.75" }},
		{"missing ego vx", func(rec map[string]any) { delete(rec["ego"].(map[string]any), "vx") }},
		{"missing other x", func(rec map[string]any) {
			delete(rec["others"].(map[string]any)["veh1"].(map[string]any), "x")
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st, err := ToStruct(sampleLog(t))
			require.NoError(t, err)
			m := st.AsMap()
			tc.mutate(m["records"].([]any)[2].(map[string]any))
			st, err = structpb.NewStruct(m)
			require.NoError(t, err)

			path := filepath.Join(t.TempDir(), "trajectory.pb")
			data, err := proto.Marshal(st)
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(path, data, 0o644))
			_, err = LoadFile(path)
			assert.ErrorIs(t, err, ErrCorrupted)
		})
	}
}

func TestSQLitePragmasOnEveryConnection(t *testing.T) {
	ctx := context.Background()
	db, err := openSQLite(ctx, filepath.Join(t.TempDir(), "trajectory.db"))
	require.NoError(t, err)
	defer db.Close()

	// 同时持有两个连接，确保连接池新开的连接也启用了外键
	c1, err := db.Conn(ctx)
	require.NoError(t, err)
	defer c1.Close()
	c2, err := db.Conn(ctx)
	require.NoError(t, err)
	defer c2.Close()
	for _, c := range []*sql.Conn{c1, c2} {
		var fk, timeout int
		require.NoError(t, c.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk))
		require.NoError(t, c.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout))
		assert.Equal(t, 1, fk)
		assert.Equal(t, 5000, timeout)
	}
	_, err = c2.ExecContext(ctx, `INSERT INTO records VALUES ('missing', 1, 0, 0, 0, 0, 0, 0, 'm', 's')`)
	assert.Error(t, err)
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "trajectory.db")
	first, second := sampleLog(t), sampleLog(t)
	second.Scenario = "again"
	require.NoError(t, SQLiteSink{Path: path}.Write(ctx, first))
	require.NoError(t, SQLiteSink{Path: path}.Write(ctx, second))

	for _, want := range []*Log{first, second} {
		got, err := LoadSQLite(ctx, path, want.RunID)
		require.NoError(t, err)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("sqlite round trip mismatch (-want +got):\n%s", diff)
		}
	}

	// 同一运行不能重复写入
	assert.Error(t, SQLiteSink{Path: path}.Write(ctx, first))
}

func TestDocuments(t *testing.T) {
	l := sampleLog(t)
	docs := Documents(l)
	require.Len(t, docs, 5)
	d := docs[0].(bson.D).Map()
	assert.Equal(t, l.RunID.String(), d["run_id"])
	assert.Equal(t, int32(1), d["step"])
	assert.Contains(t, d["others"], "veh2")
}

type failingSink struct{}

func (failingSink) Name() string { return "failing" }

func (failingSink) Write(context.Context, *Log) error { return errors.New("disk full") }

func TestWriteAllContinuesAfterFailure(t *testing.T) {
	l := sampleLog(t)
	path := filepath.Join(t.TempDir(), "trajectory.pb")
	err := WriteAll(context.Background(), l, failingSink{}, FileSink{Path: path})
	assert.ErrorContains(t, err, "disk full")

	got, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, l.EgoY(), got.EgoY())
}
