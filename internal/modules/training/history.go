package training

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// HistoryRepository records finished training runs for the audit trail.
type HistoryRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewHistoryRepository creates a training run history repository.
func NewHistoryRepository(db *sql.DB, log zerolog.Logger) *HistoryRepository {
	return &HistoryRepository{
		db:  db,
		log: log.With().Str("component", "training_history").Logger(),
	}
}

// Record stores one finished run.
func (r *HistoryRepository) Record(run *Run) error {
	params := run.Params
	if params == nil {
		params = json.RawMessage("{}")
	}
	var finished sql.NullInt64
	if run.FinishedAt != nil {
		finished = sql.NullInt64{Int64: run.FinishedAt.Unix(), Valid: true}
	}

	_, err := r.db.Exec(`
		INSERT INTO training_runs (id, started_at, finished_at, status, accuracy, model_id, error, params_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.Unix(), finished, string(run.Status),
		run.Accuracy, run.ModelID, run.Error, string(params))
	if err != nil {
		return fmt.Errorf("failed to record training run: %w", err)
	}
	return nil
}

// List returns the most recent runs, newest first.
func (r *HistoryRepository) List(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(`
		SELECT id, started_at, finished_at, status, accuracy, model_id, error, params_json
		FROM training_runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query training runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run      Run
			started  int64
			finished sql.NullInt64
			accuracy sql.NullFloat64
			modelID  sql.NullString
			errMsg   sql.NullString
			status   string
			params   string
		)
		if err := rows.Scan(&run.ID, &started, &finished, &status, &accuracy, &modelID, &errMsg, &params); err != nil {
			return nil, fmt.Errorf("failed to scan training run: %w", err)
		}
		run.StartedAt = time.Unix(started, 0).UTC()
		if finished.Valid {
			t := time.Unix(finished.Int64, 0).UTC()
			run.FinishedAt = &t
		}
		run.Status = JobState(status)
		run.Accuracy = accuracy.Float64
		run.ModelID = modelID.String
		run.Error = errMsg.String
		if params != "" && params != "{}" {
			run.Params = json.RawMessage(params)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LastParams returns the parameter set of the most recent run, or nil when
// no run has happened yet.
func (r *HistoryRepository) LastParams() (*Parameters, error) {
	var params string
	err := r.db.QueryRow(`
		SELECT params_json FROM training_runs
		ORDER BY started_at DESC, id DESC LIMIT 1`).Scan(&params)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read last run params: %w", err)
	}
	var p Parameters
	if err := json.Unmarshal([]byte(params), &p); err != nil {
		r.log.Warn().Err(err).Msg("Failed to decode last run params")
		return nil, nil
	}
	return &p, nil
}
