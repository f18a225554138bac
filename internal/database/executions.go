// Copyright (c) 2025, the flowdeck contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package database

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/flowdeck/flowdeck/internal/models"
)

// ExecutionFilter narrows execution queries. Nil/empty fields are
// ignored. InstanceID filters through the owning workflow; the date
// range is inclusive on started_at and compared in UTC, matching how
// rows are stored.
type ExecutionFilter struct {
	WorkflowID  *int64
	InstanceID  *int64
	Status      string
	StartedFrom *time.Time
	StartedTo   *time.Time
}

func (f ExecutionFilter) apply(b sq.SelectBuilder) sq.SelectBuilder {
	if f.WorkflowID != nil {
		b = b.Where(sq.Eq{"e.workflow_id": *f.WorkflowID})
	}
	if f.InstanceID != nil {
		b = b.Where(sq.Eq{"w.instance_id": *f.InstanceID})
	}
	if f.Status != "" {
		b = b.Where(sq.Eq{"e.status": f.Status})
	}
	if f.StartedFrom != nil {
		b = b.Where(sq.GtOrEq{"e.started_at": f.StartedFrom.UTC()})
	}
	if f.StartedTo != nil {
		b = b.Where(sq.LtOrEq{"e.started_at": f.StartedTo.UTC()})
	}
	return b
}

func executionSelect(builder sq.StatementBuilderType) sq.SelectBuilder {
	return builder.Select(
		"e.id", "e.execution_id", "e.workflow_id", "e.status",
		"e.started_at", "e.finished_at", "e.duration_ms", "e.data", "e.error",
		"e.created_at", "e.updated_at",
		"w.id", "w.workflow_id", "w.name",
		"i.id", "i.name", "i.api_base_url",
	).
		From("executions e").
		Join("workflows w ON w.id = e.workflow_id").
		Join("instances i ON i.id = w.instance_id")
}

func scanExecution(row sq.RowScanner) (*models.Execution, error) {
	var (
		execution  models.Execution
		workflow   models.WorkflowSummary
		instance   models.InstanceSummary
		finishedAt sql.NullTime
		durationMs sql.NullInt64
		data       sql.NullString
		execErr    sql.NullString
	)

	err := row.Scan(
		&execution.ID, &execution.ExecutionID, &execution.WorkflowID, &execution.Status,
		&execution.StartedAt, &finishedAt, &durationMs, &data, &execErr,
		&execution.CreatedAt, &execution.UpdatedAt,
		&workflow.ID, &workflow.WorkflowID, &workflow.Name,
		&instance.ID, &instance.Name, &instance.APIBaseURL,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if finishedAt.Valid {
		execution.FinishedAt = &finishedAt.Time
	}
	if durationMs.Valid {
		execution.DurationMs = &durationMs.Int64
	}
	if data.Valid {
		execution.Data = &data.String
	}
	if execErr.Valid {
		execution.Error = &execErr.String
	}
	workflow.Instance = &instance
	execution.Workflow = &workflow

	return &execution, nil
}

// ListExecutions retrieves one page of executions matching the filter,
// newest start first, along with the total match count.
func (db *DB) ListExecutions(ctx context.Context, filter ExecutionFilter, page, limit int) ([]models.Execution, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	countBuilder := filter.apply(
		db.squirrel.Select("COUNT(*)").
			From("executions e").
			Join("workflows w ON w.id = e.workflow_id"),
	)

	query, args, err := countBuilder.ToSql()
	if err != nil {
		return nil, 0, err
	}

	var total int64
	if err := db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	queryBuilder := filter.apply(executionSelect(db.squirrel)).
		OrderBy("e.started_at DESC").
		Limit(uint64(limit)).
		Offset(uint64((page - 1) * limit))

	query, args, err = queryBuilder.ToSql()
	if err != nil {
		return nil, 0, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var executions []models.Execution
	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, 0, err
		}
		executions = append(executions, *execution)
	}

	return executions, total, rows.Err()
}

// ListRecentExecutionsByWorkflow retrieves the most recently recorded
// executions of one workflow, without the joined summaries.
func (db *DB) ListRecentExecutionsByWorkflow(ctx context.Context, workflowID int64, limit int) ([]models.Execution, error) {
	queryBuilder := db.squirrel.Select(
		"id", "execution_id", "workflow_id", "status",
		"started_at", "finished_at", "duration_ms",
		"created_at", "updated_at",
	).
		From("executions").
		Where(sq.Eq{"workflow_id": workflowID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit))

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var executions []models.Execution
	for rows.Next() {
		var (
			execution  models.Execution
			finishedAt sql.NullTime
			durationMs sql.NullInt64
		)
		err := rows.Scan(
			&execution.ID, &execution.ExecutionID, &execution.WorkflowID, &execution.Status,
			&execution.StartedAt, &finishedAt, &durationMs,
			&execution.CreatedAt, &execution.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		if finishedAt.Valid {
			execution.FinishedAt = &finishedAt.Time
		}
		if durationMs.Valid {
			execution.DurationMs = &durationMs.Int64
		}
		executions = append(executions, execution)
	}

	return executions, rows.Err()
}

// GetExecution retrieves an execution by id with its workflow and
// instance summaries, returning nil when absent.
func (db *DB) GetExecution(ctx context.Context, id int64) (*models.Execution, error) {
	queryBuilder := executionSelect(db.squirrel).Where(sq.Eq{"e.id": id})

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, err
	}

	return scanExecution(db.QueryRowContext(ctx, query, args...))
}

// CreateExecution persists a new execution record and fills in its id
// and timestamps. Times are normalized to UTC before storage so range
// comparisons hold across input offsets.
func (db *DB) CreateExecution(ctx context.Context, execution *models.Execution) error {
	now := time.Now().UTC()

	execution.StartedAt = execution.StartedAt.UTC()
	if execution.FinishedAt != nil {
		utc := execution.FinishedAt.UTC()
		execution.FinishedAt = &utc
	}

	queryBuilder := db.squirrel.Insert("executions").
		Columns("execution_id", "workflow_id", "status", "started_at", "finished_at", "duration_ms", "data", "error", "created_at", "updated_at").
		Values(execution.ExecutionID, execution.WorkflowID, execution.Status, execution.StartedAt,
			execution.FinishedAt, execution.DurationMs, execution.Data, execution.Error, now, now).
		Suffix("RETURNING id").RunWith(db.DB)

	if err := queryBuilder.QueryRowContext(ctx).Scan(&execution.ID); err != nil {
		return errors.Wrap(err, "error executing query")
	}

	execution.CreatedAt = now
	execution.UpdatedAt = now

	return nil
}

// DeleteExecution deletes an execution by id
func (db *DB) DeleteExecution(ctx context.Context, id int64) (bool, error) {
	queryBuilder := db.squirrel.Delete("executions").Where(sq.Eq{"id": id})

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return false, err
	}

	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}

// DeleteExecutions bulk-deletes every execution matching the filter
// and returns the number of deleted rows.
func (db *DB) DeleteExecutions(ctx context.Context, filter ExecutionFilter) (int64, error) {
	matchBuilder := filter.apply(
		db.squirrel.Select("e.id").
			From("executions e").
			Join("workflows w ON w.id = e.workflow_id"),
	)

	matchQuery, matchArgs, err := matchBuilder.ToSql()
	if err != nil {
		return 0, err
	}

	res, err := db.ExecContext(ctx, "DELETE FROM executions WHERE id IN ("+matchQuery+")", matchArgs...)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}
