// Copyright (c) 2025, the flowdeck contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package database

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/flowdeck/flowdeck/internal/models"
)

// ExecutionSample is the minimal projection used for trend bucketing.
type ExecutionSample struct {
	StartedAt time.Time
	Status    string
}

func (db *DB) countRows(ctx context.Context, builder sq.SelectBuilder) (int64, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return 0, err
	}

	var count int64
	if err := db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// CountInstances counts instances, optionally restricted to one status
func (db *DB) CountInstances(ctx context.Context, status string) (int64, error) {
	queryBuilder := db.squirrel.Select("COUNT(*)").From("instances")
	if status != "" {
		queryBuilder = queryBuilder.Where(sq.Eq{"status": status})
	}
	return db.countRows(ctx, queryBuilder)
}

// CountWorkflows counts workflows, optionally only active ones
func (db *DB) CountWorkflows(ctx context.Context, activeOnly bool) (int64, error) {
	queryBuilder := db.squirrel.Select("COUNT(*)").From("workflows")
	if activeOnly {
		queryBuilder = queryBuilder.Where(sq.Eq{"active": true})
	}
	return db.countRows(ctx, queryBuilder)
}

// CountExecutionsInRange counts executions started in [from, to),
// optionally restricted to one status.
func (db *DB) CountExecutionsInRange(ctx context.Context, from, to time.Time, status string) (int64, error) {
	queryBuilder := db.squirrel.Select("COUNT(*)").
		From("executions").
		Where(sq.GtOrEq{"started_at": from.UTC()}).
		Where(sq.Lt{"started_at": to.UTC()})
	if status != "" {
		queryBuilder = queryBuilder.Where(sq.Eq{"status": status})
	}
	return db.countRows(ctx, queryBuilder)
}

// ExecutionSamplesSince retrieves the start time and status of every
// execution started at or after since, oldest first.
func (db *DB) ExecutionSamplesSince(ctx context.Context, since time.Time) ([]ExecutionSample, error) {
	queryBuilder := db.squirrel.Select("started_at", "status").
		From("executions").
		Where(sq.GtOrEq{"started_at": since.UTC()}).
		OrderBy("started_at ASC")

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []ExecutionSample
	for rows.Next() {
		var sample ExecutionSample
		if err := rows.Scan(&sample.StartedAt, &sample.Status); err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}

	return samples, rows.Err()
}

// InstanceStatusCounts groups instances by status
func (db *DB) InstanceStatusCounts(ctx context.Context) ([]models.InstanceStatusCount, error) {
	queryBuilder := db.squirrel.Select("status", "COUNT(*)").
		From("instances").
		GroupBy("status").
		OrderBy("status ASC")

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []models.InstanceStatusCount
	for rows.Next() {
		var count models.InstanceStatusCount
		if err := rows.Scan(&count.Status, &count.Count); err != nil {
			return nil, err
		}
		counts = append(counts, count)
	}

	return counts, rows.Err()
}

// RecentExecutions retrieves the latest executions with their workflow
// and instance summaries joined, newest start first.
func (db *DB) RecentExecutions(ctx context.Context, limit int) ([]models.Execution, error) {
	queryBuilder := executionSelect(db.squirrel).
		OrderBy("e.started_at DESC").
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
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		executions = append(executions, *execution)
	}

	return executions, rows.Err()
}
