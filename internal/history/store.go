// Package history persists completed risk assessments to SQLite so the API
// can serve a recent trend without re-querying the imagery provider.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/couchcryptid/dustcast-service/internal/domain"
)

// Schema for the assessments table. Applied by Open.
const Schema = `
CREATE TABLE IF NOT EXISTS assessments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	kind TEXT NOT NULL,
	observed_at INTEGER NOT NULL,
	risk_score REAL NOT NULL,
	risk_level TEXT NOT NULL,
	surface_temperature REAL NOT NULL,
	vegetation_index REAL NOT NULL,
	moisture_index REAL NOT NULL,
	dust_index REAL NOT NULL,
	scene_count INTEGER NOT NULL,
	triggered TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_assessments_kind_ts ON assessments(kind, observed_at DESC);
`

// Sample is one archived assessment row.
type Sample struct {
	Kind               string             `json:"kind"`
	ObservedAt         time.Time          `json:"observed_at"`
	RiskScore          float64            `json:"risk_score"`
	RiskLevel          domain.RiskLevel   `json:"risk_level"`
	SurfaceTemperature float64            `json:"surface_temperature"`
	VegetationIndex    float64            `json:"vegetation_index"`
	MoistureIndex      float64            `json:"moisture_index"`
	DustIndex          float64            `json:"dust_index"`
	SceneCount         int              `json:"scene_count"`
	TriggeredFactors   []string         `json:"triggered_factors,omitempty"`
}

// Store archives assessments and prunes old rows past a per-kind cap.
type Store struct {
	db      *sql.DB
	maxRows int
}

// Open opens (or creates) the SQLite database at path and applies the schema.
// maxRows caps retained rows per kind; zero disables pruning.
func Open(path string, maxRows int) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// modernc's driver serializes writes itself, but a single connection
	// avoids SQLITE_BUSY under concurrent appends and reads.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}
	return &Store{db: db, maxRows: maxRows}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Append archives one assessment and prunes rows beyond the per-kind cap.
func (s *Store) Append(ctx context.Context, kind string, a domain.RiskAssessment) error {
	triggered, err := json.Marshal(a.TriggeredFactors)
	if err != nil {
		return fmt.Errorf("encode triggered factors: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO assessments
		(kind, observed_at, risk_score, risk_level, surface_temperature,
		 vegetation_index, moisture_index, dust_index, scene_count, triggered)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		kind, a.Timestamp.UTC().Unix(), a.RiskScore, string(a.RiskLevel),
		a.RawIndices.SurfaceTemperature, a.RawIndices.VegetationIndex,
		a.RawIndices.MoistureIndex, a.RawIndices.DustIndex,
		a.RawIndices.SceneCount, string(triggered))
	if err != nil {
		return fmt.Errorf("insert assessment: %w", err)
	}

	if s.maxRows > 0 {
		_, err = s.db.ExecContext(ctx, `DELETE FROM assessments
			WHERE kind = ? AND id NOT IN (
				SELECT id FROM assessments WHERE kind = ?
				ORDER BY observed_at DESC, id DESC LIMIT ?)`,
			kind, kind, s.maxRows)
		if err != nil {
			return fmt.Errorf("prune assessments: %w", err)
		}
	}
	return nil
}

// Recent returns up to limit samples for kind, newest first.
func (s *Store) Recent(ctx context.Context, kind string, limit int) ([]Sample, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, observed_at, risk_score,
		risk_level, surface_temperature, vegetation_index, moisture_index,
		dust_index, scene_count, triggered
		FROM assessments WHERE kind = ?
		ORDER BY observed_at DESC, id DESC LIMIT ?`, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("query assessments: %w", err)
	}
	defer rows.Close()

	var out []Sample
	for rows.Next() {
		var (
			sample    Sample
			observed  int64
			level     string
			triggered string
		)
		if err := rows.Scan(&sample.Kind, &observed, &sample.RiskScore, &level,
			&sample.SurfaceTemperature, &sample.VegetationIndex,
			&sample.MoistureIndex, &sample.DustIndex,
			&sample.SceneCount, &triggered); err != nil {
			return nil, fmt.Errorf("scan assessment: %w", err)
		}
		sample.ObservedAt = time.Unix(observed, 0).UTC()
		sample.RiskLevel = domain.RiskLevel(level)
		if triggered != "" && triggered != "null" {
			if err := json.Unmarshal([]byte(triggered), &sample.TriggeredFactors); err != nil {
				return nil, fmt.Errorf("decode triggered factors: %w", err)
			}
		}
		out = append(out, sample)
	}
	return out, rows.Err()
}
