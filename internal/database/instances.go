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

var instanceColumns = []string{"id", "name", "api_base_url", "api_key", "auth_type", "status", "created_at", "updated_at"}

func scanInstance(row sq.RowScanner) (*models.Instance, error) {
	var instance models.Instance
	err := row.Scan(
		&instance.ID,
		&instance.Name,
		&instance.APIBaseURL,
		&instance.APIKey,
		&instance.AuthType,
		&instance.Status,
		&instance.CreatedAt,
		&instance.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &instance, nil
}

// ListInstances retrieves all instances ordered by creation time descending
func (db *DB) ListInstances(ctx context.Context) ([]models.Instance, error) {
	queryBuilder := db.squirrel.Select(instanceColumns...).
		From("instances").
		OrderBy("created_at DESC")

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var instances []models.Instance
	for rows.Next() {
		instance, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		instances = append(instances, *instance)
	}

	return instances, rows.Err()
}

// GetInstance retrieves an instance by id, returning nil when absent
func (db *DB) GetInstance(ctx context.Context, id int64) (*models.Instance, error) {
	queryBuilder := db.squirrel.Select(instanceColumns...).
		From("instances").
		Where(sq.Eq{"id": id})

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, err
	}

	return scanInstance(db.QueryRowContext(ctx, query, args...))
}

// FindInstanceByName retrieves an instance by name, optionally
// excluding one id (for uniqueness checks on update).
func (db *DB) FindInstanceByName(ctx context.Context, name string, excludeID int64) (*models.Instance, error) {
	queryBuilder := db.squirrel.Select(instanceColumns...).
		From("instances").
		Where(sq.Eq{"name": name})

	if excludeID != 0 {
		queryBuilder = queryBuilder.Where(sq.NotEq{"id": excludeID})
	}

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, err
	}

	return scanInstance(db.QueryRowContext(ctx, query, args...))
}

// CreateInstance persists a new instance and fills in its id and timestamps
func (db *DB) CreateInstance(ctx context.Context, instance *models.Instance) error {
	now := time.Now().UTC()

	if instance.AuthType == "" {
		instance.AuthType = models.AuthTypeAPIKey
	}
	if instance.Status == "" {
		instance.Status = models.InstanceStatusActive
	}

	queryBuilder := db.squirrel.Insert("instances").
		Columns("name", "api_base_url", "api_key", "auth_type", "status", "created_at", "updated_at").
		Values(instance.Name, instance.APIBaseURL, instance.APIKey, instance.AuthType, instance.Status, now, now).
		Suffix("RETURNING id").RunWith(db.DB)

	if err := queryBuilder.QueryRowContext(ctx).Scan(&instance.ID); err != nil {
		return errors.Wrap(err, "error executing query")
	}

	instance.CreatedAt = now
	instance.UpdatedAt = now

	return nil
}

// UpdateInstance updates an existing instance and bumps updated_at
func (db *DB) UpdateInstance(ctx context.Context, instance *models.Instance) error {
	now := time.Now().UTC()

	queryBuilder := db.squirrel.Update("instances").
		Set("name", instance.Name).
		Set("api_base_url", instance.APIBaseURL).
		Set("api_key", instance.APIKey).
		Set("status", instance.Status).
		Set("updated_at", now).
		Where(sq.Eq{"id": instance.ID})

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "error executing query")
	}

	instance.UpdatedAt = now
	return nil
}

// DeleteInstance deletes an instance by id. Owned workflows and their
// executions go with it through the declared cascade rules.
func (db *DB) DeleteInstance(ctx context.Context, id int64) (bool, error) {
	queryBuilder := db.squirrel.Delete("instances").Where(sq.Eq{"id": id})

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
