package trajectory

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id   TEXT PRIMARY KEY,
	scenario TEXT NOT NULL,
	dt       REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS records (
	run_id TEXT NOT NULL REFERENCES runs(run_id),
	step   INTEGER NOT NULL,
	t      REAL NOT NULL,
	ego_x  REAL NOT NULL,
	ego_y  REAL NOT NULL,
	ego_vx REAL NOT NULL,
	ego_ax REAL NOT NULL,
	ego_ay REAL NOT NULL,
	mode   TEXT NOT NULL,
	status TEXT NOT NULL,
	PRIMARY KEY (run_id, step)
);
CREATE TABLE IF NOT EXISTS others (
	run_id     TEXT NOT NULL REFERENCES runs(run_id),
	step       INTEGER NOT NULL,
	vehicle_id TEXT NOT NULL,
	x          REAL NOT NULL,
	y          REAL NOT NULL,
	vx         REAL NOT NULL,
	PRIMARY KEY (run_id, step, vehicle_id)
);`

// pragmas 写在连接串中，连接池里的每个连接都会执行
var pragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"foreign_keys(1)",
}

func sqliteDSN(path string) string {
	q := url.Values{"_pragma": pragmas}
	return path + "?" + q.Encode()
}

// SQLiteSink 写出到SQLite数据库，同一数据库可保存多次运行
type SQLiteSink struct {
	Path string
}

func (s SQLiteSink) Name() string {
	return "sqlite " + s.Path
}

func openSQLite(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("trajectory: open %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("trajectory: schema: %w", err)
	}
	return db, nil
}

func (s SQLiteSink) Write(ctx context.Context, l *Log) (err error) {
	db, err := openSQLite(ctx, s.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()
	id := l.RunID.String()
	if _, err = tx.ExecContext(ctx, `INSERT INTO runs (run_id, scenario, dt) VALUES (?, ?, ?)`,
		id, l.Scenario, l.DT); err != nil {
		return fmt.Errorf("trajectory: insert run: %w", err)
	}
	recStmt, err := tx.PrepareContext(ctx, `INSERT INTO records
		(run_id, step, t, ego_x, ego_y, ego_vx, ego_ax, ego_ay, mode, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer recStmt.Close()
	otherStmt, err := tx.PrepareContext(ctx, `INSERT INTO others
		(run_id, step, vehicle_id, x, y, vx) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer otherStmt.Close()

	for _, r := range l.Records {
		if _, err = recStmt.ExecContext(ctx, id, r.Step, r.T,
			r.EgoX, r.EgoY, r.EgoVX, r.EgoAX, r.EgoAY, r.Mode, r.Status); err != nil {
			return fmt.Errorf("trajectory: insert step %d: %w", r.Step, err)
		}
		for vid, o := range r.Others {
			if _, err = otherStmt.ExecContext(ctx, id, r.Step, vid, o.X, o.Y, o.VX); err != nil {
				return fmt.Errorf("trajectory: insert step %d vehicle %s: %w", r.Step, vid, err)
			}
		}
	}
	return tx.Commit()
}

// LoadSQLite 从SQLite数据库读取一次运行的轨迹日志
func LoadSQLite(ctx context.Context, path string, runID uuid.UUID) (*Log, error) {
	db, err := openSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	id := runID.String()
	l := &Log{RunID: runID}
	if err := db.QueryRowContext(ctx, `SELECT scenario, dt FROM runs WHERE run_id = ?`, id).
		Scan(&l.Scenario, &l.DT); err != nil {
		return nil, fmt.Errorf("trajectory: run %s: %w", id, err)
	}

	rows, err := db.QueryContext(ctx, `SELECT step, t, ego_x, ego_y, ego_vx, ego_ax, ego_ay, mode, status
		FROM records WHERE run_id = ? ORDER BY step`, id)
	if err != nil {
		return nil, err
	}
	index := map[int32]int{}
	for rows.Next() {
		r := Record{Others: map[string]OtherRecord{}}
		if err := rows.Scan(&r.Step, &r.T, &r.EgoX, &r.EgoY, &r.EgoVX, &r.EgoAX, &r.EgoAY,
			&r.Mode, &r.Status); err != nil {
			rows.Close()
			return nil, err
		}
		index[r.Step] = len(l.Records)
		l.Records = append(l.Records, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = db.QueryContext(ctx, `SELECT step, vehicle_id, x, y, vx FROM others WHERE run_id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			step int32
			vid  string
			o    OtherRecord
		)
		if err := rows.Scan(&step, &vid, &o.X, &o.Y, &o.VX); err != nil {
			return nil, err
		}
		i, ok := index[step]
		if !ok {
			return nil, fmt.Errorf("%w: vehicle %s at unknown step %d", ErrCorrupted, vid, step)
		}
		l.Records[i].Others[vid] = o
	}
	return l, rows.Err()
}
