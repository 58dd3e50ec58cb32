package sensorlog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
	_ "modernc.org/sqlite"

	"github.com/argos-data/trackrecon/internal/geom"
	"github.com/argos-data/trackrecon/internal/recorder"
)

const schema = `
CREATE TABLE IF NOT EXISTS log_meta (
	key               TEXT PRIMARY KEY,
	value             TEXT
);
CREATE TABLE IF NOT EXISTS gps_poses (
	ts                DOUBLE PRIMARY KEY,
	x                 DOUBLE, y DOUBLE, z DOUBLE,
	qw                DOUBLE, qx DOUBLE, qy DOUBLE, qz DOUBLE
);
CREATE TABLE IF NOT EXISTS frame_transforms (
	ts                DOUBLE PRIMARY KEY,
	tx                DOUBLE, ty DOUBLE, tz DOUBLE,
	qw                DOUBLE, qx DOUBLE, qy DOUBLE, qz DOUBLE
);
CREATE TABLE IF NOT EXISTS groundtruth_poses (
	ts                DOUBLE PRIMARY KEY,
	x                 DOUBLE, y DOUBLE, z DOUBLE,
	qw                DOUBLE, qx DOUBLE, qy DOUBLE, qz DOUBLE
);
CREATE TABLE IF NOT EXISTS estimator_snapshots (
	ts                DOUBLE PRIMARY KEY,
	x                 DOUBLE, y DOUBLE, z DOUBLE,
	qw                DOUBLE, qx DOUBLE, qy DOUBLE, qz DOUBLE,
	innovation        TEXT,
	innovation_cov    TEXT
);
`

// OpenSQLite loads a recorded sensor log from a sqlite database. The whole
// log is read into memory; these are offline diagnostic runs, not a live
// store. Groundtruth and estimator snapshots are optional tables — their
// absence (or emptiness) is feature-detected, never an error.
func OpenSQLite(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sensorlog: open %s: %w", path, err)
	}
	defer db.Close()

	boresight, err := metaVector(db, "boresight")
	if err != nil {
		return nil, err
	}

	poses, err := readPoses(db, "gps_poses")
	if err != nil {
		return nil, err
	}
	if len(poses) == 0 {
		return nil, fmt.Errorf("sensorlog: %s has no gps_poses", path)
	}
	deltas, err := readTransforms(db)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, len(poses))
	for i, p := range poses {
		entries[i] = Entry{Time: p.Time, Position: p.Position, Attitude: p.Attitude}
		if d, ok := deltas[p.Time]; ok {
			entries[i].Delta = d
		} else if i > 0 {
			return nil, fmt.Errorf("sensorlog: no frame transform at ts=%v", p.Time)
		}
	}
	log, err := NewLog(boresight, entries)
	if err != nil {
		return nil, err
	}

	if gtPoses, err := readPoses(db, "groundtruth_poses"); err != nil {
		return nil, err
	} else if len(gtPoses) > 0 {
		gt := &Groundtruth{}
		if gt.Boresight, err = metaVector(db, "groundtruth_boresight"); err != nil {
			return nil, err
		}
		for _, p := range gtPoses {
			gt.Times = append(gt.Times, p.Time)
			gt.Positions = append(gt.Positions, p.Position)
			gt.Attitudes = append(gt.Attitudes, p.Attitude)
		}
		log.SetGroundtruth(gt)
	}

	snaps, err := readSnapshots(db)
	if err != nil {
		return nil, err
	}
	if len(snaps) > 0 {
		log.SetSnapshots(snaps)
	}
	return log, nil
}

// WriteSQLite stores an in-memory log as a sqlite database, stamping it
// with a fresh log id. Used by the synthetic-log generator and by tests.
func WriteSQLite(path string, l *Log) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("sensorlog: create %s: %w", path, err)
	}
	defer db.Close()

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("sensorlog: create schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	putMeta := func(key, value string) error {
		_, err := tx.Exec(`INSERT OR REPLACE INTO log_meta (key, value) VALUES (?, ?)`, key, value)
		return err
	}
	if err := putMeta("log_id", uuid.NewString()); err != nil {
		return err
	}
	if err := putMetaVector(putMeta, "boresight", l.boresight); err != nil {
		return err
	}

	for i, e := range l.entries {
		w, x, y, z := e.Attitude.Quaternion()
		if _, err := tx.Exec(
			`INSERT INTO gps_poses (ts, x, y, z, qw, qx, qy, qz) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			e.Time, e.Position.X, e.Position.Y, e.Position.Z, w, x, y, z); err != nil {
			return fmt.Errorf("sensorlog: pose at %v: %w", e.Time, err)
		}
		if i == 0 {
			continue
		}
		dw, dx, dy, dz := e.Delta.Rotation.Quaternion()
		if _, err := tx.Exec(
			`INSERT INTO frame_transforms (ts, tx, ty, tz, qw, qx, qy, qz) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			e.Time, e.Delta.Translation.X, e.Delta.Translation.Y, e.Delta.Translation.Z,
			dw, dx, dy, dz); err != nil {
			return fmt.Errorf("sensorlog: transform at %v: %w", e.Time, err)
		}
	}

	if gt, ok := l.Groundtruth(); ok {
		if err := putMetaVector(putMeta, "groundtruth_boresight", gt.Boresight); err != nil {
			return err
		}
		for i, t := range gt.Times {
			w, x, y, z := gt.Attitudes[i].Quaternion()
			p := gt.Positions[i]
			if _, err := tx.Exec(
				`INSERT INTO groundtruth_poses (ts, x, y, z, qw, qx, qy, qz) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				t, p.X, p.Y, p.Z, w, x, y, z); err != nil {
				return fmt.Errorf("sensorlog: groundtruth at %v: %w", t, err)
			}
		}
	}

	for _, s := range l.snapshots {
		if err := writeSnapshot(tx, s); err != nil {
			return err
		}
	}
	return tx.Commit()
}

type timedPose struct {
	Time     float64
	Position r3.Vector
	Attitude geom.Rotation
}

func readPoses(db *sql.DB, table string) ([]timedPose, error) {
	if ok, err := tableExists(db, table); err != nil || !ok {
		return nil, err
	}
	rows, err := db.Query(`SELECT ts, x, y, z, qw, qx, qy, qz FROM ` + table + ` ORDER BY ts ASC`)
	if err != nil {
		return nil, fmt.Errorf("sensorlog: read %s: %w", table, err)
	}
	defer rows.Close()

	var out []timedPose
	for rows.Next() {
		var ts, x, y, z, qw, qx, qy, qz float64
		if err := rows.Scan(&ts, &x, &y, &z, &qw, &qx, &qy, &qz); err != nil {
			return nil, fmt.Errorf("sensorlog: scan %s: %w", table, err)
		}
		att, err := geom.NewRotationFromQuaternion(qw, qx, qy, qz)
		if err != nil {
			return nil, fmt.Errorf("sensorlog: %s at ts=%v: %w", table, ts, err)
		}
		out = append(out, timedPose{Time: ts, Position: r3.Vector{X: x, Y: y, Z: z}, Attitude: att})
	}
	return out, rows.Err()
}

func readTransforms(db *sql.DB) (map[float64]geom.RigidTransform, error) {
	out := make(map[float64]geom.RigidTransform)
	if ok, err := tableExists(db, "frame_transforms"); err != nil || !ok {
		return out, err
	}
	rows, err := db.Query(`SELECT ts, tx, ty, tz, qw, qx, qy, qz FROM frame_transforms`)
	if err != nil {
		return nil, fmt.Errorf("sensorlog: read frame_transforms: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ts, tx, ty, tz, qw, qx, qy, qz float64
		if err := rows.Scan(&ts, &tx, &ty, &tz, &qw, &qx, &qy, &qz); err != nil {
			return nil, fmt.Errorf("sensorlog: scan frame_transforms: %w", err)
		}
		rot, err := geom.NewRotationFromQuaternion(qw, qx, qy, qz)
		if err != nil {
			return nil, fmt.Errorf("sensorlog: transform at ts=%v: %w", ts, err)
		}
		out[ts] = geom.RigidTransform{Translation: r3.Vector{X: tx, Y: ty, Z: tz}, Rotation: rot}
	}
	return out, rows.Err()
}

func readSnapshots(db *sql.DB) ([]TimedSnapshot, error) {
	if ok, err := tableExists(db, "estimator_snapshots"); err != nil || !ok {
		return nil, err
	}
	rows, err := db.Query(`SELECT ts, x, y, z, qw, qx, qy, qz, innovation, innovation_cov
		FROM estimator_snapshots ORDER BY ts ASC`)
	if err != nil {
		return nil, fmt.Errorf("sensorlog: read estimator_snapshots: %w", err)
	}
	defer rows.Close()

	var out []TimedSnapshot
	for rows.Next() {
		var ts, x, y, z, qw, qx, qy, qz float64
		var innovJSON, covJSON sql.NullString
		if err := rows.Scan(&ts, &x, &y, &z, &qw, &qx, &qy, &qz, &innovJSON, &covJSON); err != nil {
			return nil, fmt.Errorf("sensorlog: scan estimator_snapshots: %w", err)
		}
		att, err := geom.NewRotationFromQuaternion(qw, qx, qy, qz)
		if err != nil {
			return nil, fmt.Errorf("sensorlog: snapshot at ts=%v: %w", ts, err)
		}
		s := recorder.Snapshot{Position: r3.Vector{X: x, Y: y, Z: z}, Attitude: att}
		if innovJSON.Valid && innovJSON.String != "" {
			if err := json.Unmarshal([]byte(innovJSON.String), &s.Innovation); err != nil {
				return nil, fmt.Errorf("sensorlog: innovation at ts=%v: %w", ts, err)
			}
		}
		if covJSON.Valid && covJSON.String != "" {
			var covRows [][]float64
			if err := json.Unmarshal([]byte(covJSON.String), &covRows); err != nil {
				return nil, fmt.Errorf("sensorlog: innovation covariance at ts=%v: %w", ts, err)
			}
			n := len(covRows)
			s.InnovationCov = mat.NewSymDense(n, nil)
			for i := 0; i < n; i++ {
				if len(covRows[i]) != n {
					return nil, fmt.Errorf("sensorlog: covariance at ts=%v is not square", ts)
				}
				for j := i; j < n; j++ {
					s.InnovationCov.SetSym(i, j, covRows[i][j])
				}
			}
		}
		out = append(out, TimedSnapshot{Time: ts, State: s})
	}
	return out, rows.Err()
}

func writeSnapshot(tx *sql.Tx, s TimedSnapshot) error {
	w, x, y, z := s.State.Attitude.Quaternion()
	var innovJSON, covJSON []byte
	var err error
	if s.State.Innovation != nil {
		if innovJSON, err = json.Marshal(s.State.Innovation); err != nil {
			return fmt.Errorf("sensorlog: marshal innovation at %v: %w", s.Time, err)
		}
	}
	if s.State.InnovationCov != nil {
		n := s.State.InnovationCov.SymmetricDim()
		covRows := make([][]float64, n)
		for i := range covRows {
			covRows[i] = make([]float64, n)
			for j := 0; j < n; j++ {
				covRows[i][j] = s.State.InnovationCov.At(i, j)
			}
		}
		if covJSON, err = json.Marshal(covRows); err != nil {
			return fmt.Errorf("sensorlog: marshal covariance at %v: %w", s.Time, err)
		}
	}
	_, err = tx.Exec(
		`INSERT INTO estimator_snapshots (ts, x, y, z, qw, qx, qy, qz, innovation, innovation_cov)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.Time, s.State.Position.X, s.State.Position.Y, s.State.Position.Z,
		w, x, y, z, nullable(innovJSON), nullable(covJSON))
	if err != nil {
		return fmt.Errorf("sensorlog: snapshot at %v: %w", s.Time, err)
	}
	return nil
}

func nullable(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

func tableExists(db *sql.DB, name string) (bool, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sensorlog: checking table %s: %w", name, err)
	}
	return n > 0, nil
}

func metaVector(db *sql.DB, key string) (r3.Vector, error) {
	var v r3.Vector
	components := []struct {
		suffix string
		dst    *float64
	}{{"_x", &v.X}, {"_y", &v.Y}, {"_z", &v.Z}}
	missing := 0
	for _, c := range components {
		var raw sql.NullFloat64
		err := db.QueryRow(`SELECT CAST(value AS DOUBLE) FROM log_meta WHERE key = ?`, key+c.suffix).Scan(&raw)
		if err == sql.ErrNoRows {
			missing++
			continue
		}
		if err != nil {
			return r3.Vector{}, fmt.Errorf("sensorlog: meta %s%s: %w", key, c.suffix, err)
		}
		*c.dst = raw.Float64
	}
	if missing > 0 {
		// A mis-keyed or incomplete log would otherwise read as a zero
		// lever arm and the track would come out un-offset.
		log.Printf("sensorlog: log_meta %s has %d missing component(s); treating as zero offset", key, missing)
	}
	return v, nil
}

func putMetaVector(put func(key, value string) error, key string, v r3.Vector) error {
	for _, c := range []struct {
		suffix string
		val    float64
	}{{"_x", v.X}, {"_y", v.Y}, {"_z", v.Z}} {
		if err := put(key+c.suffix, fmt.Sprintf("%.17g", c.val)); err != nil {
			return fmt.Errorf("sensorlog: meta %s%s: %w", key, c.suffix, err)
		}
	}
	return nil
}
