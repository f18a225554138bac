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

// WorkflowFilter narrows ListWorkflows. Nil/empty fields are ignored.
type WorkflowFilter struct {
	InstanceID *int64
	Active     *bool
	Project    string
}

func (f WorkflowFilter) apply(b sq.SelectBuilder) sq.SelectBuilder {
	if f.InstanceID != nil {
		b = b.Where(sq.Eq{"w.instance_id": *f.InstanceID})
	}
	if f.Active != nil {
		b = b.Where(sq.Eq{"w.active": *f.Active})
	}
	if f.Project != "" {
		b = b.Where(sq.Eq{"w.project": f.Project})
	}
	return b
}

func workflowSelect(builder sq.StatementBuilderType) sq.SelectBuilder {
	return builder.Select(
		"w.id", "w.instance_id", "w.workflow_id", "w.name", "w.active",
		"w.tags", "w.project", "w.created_at", "w.updated_at",
		"i.id", "i.name", "i.api_base_url",
	).
		From("workflows w").
		Join("instances i ON i.id = w.instance_id")
}

func scanWorkflow(row sq.RowScanner, withCount bool) (*models.Workflow, error) {
	var (
		workflow models.Workflow
		instance models.InstanceSummary
		tags     sql.NullString
		project  sql.NullString
		count    sql.NullInt64
	)

	dest := []interface{}{
		&workflow.ID, &workflow.InstanceID, &workflow.WorkflowID, &workflow.Name, &workflow.Active,
		&tags, &project, &workflow.CreatedAt, &workflow.UpdatedAt,
		&instance.ID, &instance.Name, &instance.APIBaseURL,
	}
	if withCount {
		dest = append(dest, &count)
	}

	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	workflow.Tags = tags.String
	workflow.Project = project.String
	workflow.Instance = &instance
	if withCount {
		workflow.ExecutionCount = &count.Int64
	}

	return &workflow, nil
}

// ListWorkflows retrieves workflows matching the filter, with their
// owning instance summary and execution count, newest update first.
func (db *DB) ListWorkflows(ctx context.Context, filter WorkflowFilter) ([]models.Workflow, error) {
	queryBuilder := workflowSelect(db.squirrel).
		Column("(SELECT COUNT(*) FROM executions e WHERE e.workflow_id = w.id) AS execution_count").
		OrderBy("w.updated_at DESC")

	queryBuilder = filter.apply(queryBuilder)

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workflows []models.Workflow
	for rows.Next() {
		workflow, err := scanWorkflow(rows, true)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, *workflow)
	}

	return workflows, rows.Err()
}

// GetWorkflow retrieves a workflow by id with its owning instance
// summary, returning nil when absent.
func (db *DB) GetWorkflow(ctx context.Context, id int64) (*models.Workflow, error) {
	queryBuilder := workflowSelect(db.squirrel).Where(sq.Eq{"w.id": id})

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, err
	}

	return scanWorkflow(db.QueryRowContext(ctx, query, args...), false)
}

// FindWorkflowByRemoteID retrieves a workflow by its (instance, remote
// workflow id) pair, returning nil when absent.
func (db *DB) FindWorkflowByRemoteID(ctx context.Context, instanceID int64, workflowID string) (*models.Workflow, error) {
	queryBuilder := workflowSelect(db.squirrel).
		Where(sq.Eq{"w.instance_id": instanceID}).
		Where(sq.Eq{"w.workflow_id": workflowID})

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, err
	}

	return scanWorkflow(db.QueryRowContext(ctx, query, args...), false)
}

// CreateWorkflow persists a new workflow and fills in its id and timestamps
func (db *DB) CreateWorkflow(ctx context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()

	queryBuilder := db.squirrel.Insert("workflows").
		Columns("instance_id", "workflow_id", "name", "active", "tags", "project", "created_at", "updated_at").
		Values(workflow.InstanceID, workflow.WorkflowID, workflow.Name, workflow.Active, workflow.Tags, workflow.Project, now, now).
		Suffix("RETURNING id").RunWith(db.DB)

	if err := queryBuilder.QueryRowContext(ctx).Scan(&workflow.ID); err != nil {
		return errors.Wrap(err, "error executing query")
	}

	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	return nil
}

// UpdateWorkflow updates the mutable fields of a workflow. Identity
// fields (instance_id, workflow_id) stay as created.
func (db *DB) UpdateWorkflow(ctx context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()

	queryBuilder := db.squirrel.Update("workflows").
		Set("name", workflow.Name).
		Set("active", workflow.Active).
		Set("tags", workflow.Tags).
		Set("project", workflow.Project).
		Set("updated_at", now).
		Where(sq.Eq{"id": workflow.ID})

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "error executing query")
	}

	workflow.UpdatedAt = now
	return nil
}

// DeleteWorkflow deletes a workflow by id, cascading to its executions
func (db *DB) DeleteWorkflow(ctx context.Context, id int64) (bool, error) {
	queryBuilder := db.squirrel.Delete("workflows").Where(sq.Eq{"id": id})

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
