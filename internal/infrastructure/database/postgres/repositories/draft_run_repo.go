// Package repositories provides PostgreSQL-backed implementations of the
// domain repository interfaces.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/turtacn/TrafficLaw-RAG/internal/domain/draft"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/database/postgres"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TrafficLaw-RAG/pkg/errors"
)

const draftRunColumns = `id, query_id, status, search_type, top_k, reference_case_id, case_type,
	law_numbers, totals, degraded_stages, archive_key, error, started_at, finished_at`

type postgresDraftRunRepo struct {
	conn   *postgres.Connection
	logger logging.Logger
}

func NewPostgresDraftRunRepo(conn *postgres.Connection, log logging.Logger) draft.RunRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &postgresDraftRunRepo{conn: conn, logger: log}
}

type runJSON struct {
	laws, totals, degraded []byte
}

func encodeRun(run *draft.Run) (runJSON, error) {
	var (
		out runJSON
		err error
	)
	laws := run.LawNumbers
	if laws == nil {
		laws = []string{}
	}
	if out.laws, err = json.Marshal(laws); err != nil {
		return out, err
	}
	totals := run.Totals
	if totals == nil {
		totals = map[string]float64{}
	}
	if out.totals, err = json.Marshal(totals); err != nil {
		return out, err
	}
	degraded := run.DegradedStages
	if degraded == nil {
		degraded = []string{}
	}
	out.degraded, err = json.Marshal(degraded)
	return out, err
}

func (r *postgresDraftRunRepo) Create(ctx context.Context, run *draft.Run) error {
	enc, err := encodeRun(run)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode draft run")
	}

	start := time.Now()
	_, err = r.conn.DB().ExecContext(ctx, `
		INSERT INTO draft_runs (`+draftRunColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		run.ID, run.QueryID, run.Status, run.SearchType, run.TopK, run.ReferenceCaseID, run.CaseType,
		enc.laws, enc.totals, enc.degraded, run.ArchiveKey, run.Error, run.StartedAt, run.FinishedAt,
	)
	r.conn.Observe("insert_draft_run", start, err)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert draft run")
	}
	return nil
}

func (r *postgresDraftRunRepo) Update(ctx context.Context, run *draft.Run) error {
	enc, err := encodeRun(run)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode draft run")
	}

	start := time.Now()
	res, err := r.conn.DB().ExecContext(ctx, `
		UPDATE draft_runs
		SET query_id = $2, status = $3, reference_case_id = $4, case_type = $5,
		    law_numbers = $6, totals = $7, degraded_stages = $8, archive_key = $9,
		    error = $10, finished_at = $11
		WHERE id = $1`,
		run.ID, run.QueryID, run.Status, run.ReferenceCaseID, run.CaseType,
		enc.laws, enc.totals, enc.degraded, run.ArchiveKey, run.Error, run.FinishedAt,
	)
	r.conn.Observe("update_draft_run", start, err)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to update draft run")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.Newf(errors.ErrCodeDraftNotFound, "draft run %s not found", run.ID)
	}
	return nil
}

func (r *postgresDraftRunRepo) Get(ctx context.Context, id string) (*draft.Run, error) {
	start := time.Now()
	row := r.conn.DB().QueryRowContext(ctx, `SELECT `+draftRunColumns+` FROM draft_runs WHERE id = $1`, id)
	run, err := scanRun(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		r.conn.Observe("get_draft_run", start, nil)
		return nil, errors.Newf(errors.ErrCodeDraftNotFound, "draft run %s not found", id)
	}
	r.conn.Observe("get_draft_run", start, err)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to load draft run")
	}
	return run, nil
}

func (r *postgresDraftRunRepo) ListRecent(ctx context.Context, limit int) ([]*draft.Run, error) {
	if limit <= 0 || limit > 200 {
		limit = 20
	}

	start := time.Now()
	rows, err := r.conn.DB().QueryContext(ctx,
		`SELECT `+draftRunColumns+` FROM draft_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		r.conn.Observe("list_draft_runs", start, err)
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list draft runs")
	}
	defer rows.Close()

	var runs []*draft.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			r.conn.Observe("list_draft_runs", start, err)
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan draft run")
		}
		runs = append(runs, run)
	}
	err = rows.Err()
	r.conn.Observe("list_draft_runs", start, err)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate draft runs")
	}
	return runs, nil
}

// scanner abstracts sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*draft.Run, error) {
	var (
		run                    draft.Run
		status                 string
		queryID, refCase       sql.NullInt64
		finished               sql.NullTime
		laws, totals, degraded []byte
	)
	err := s.Scan(&run.ID, &queryID, &status, &run.SearchType, &run.TopK, &refCase, &run.CaseType,
		&laws, &totals, &degraded, &run.ArchiveKey, &run.Error, &run.StartedAt, &finished)
	if err != nil {
		return nil, err
	}

	run.Status = draft.Status(status)
	if queryID.Valid {
		run.QueryID = &queryID.Int64
	}
	if refCase.Valid {
		run.ReferenceCaseID = &refCase.Int64
	}
	if finished.Valid {
		run.FinishedAt = &finished.Time
	}
	if err := unmarshalJSON(laws, &run.LawNumbers); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(totals, &run.Totals); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(degraded, &run.DegradedStages); err != nil {
		return nil, err
	}
	return &run, nil
}

func unmarshalJSON(data []byte, dest any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dest)
}
