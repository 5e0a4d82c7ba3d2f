package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Gstman420/emergency-response-backend/internal/models"

	"github.com/lib/pq"
)

const emergencyColumns = `
			emergency_id,
			emergency_type,
			severity,
			required_resource,
			status,
			deadlock_detected,
			deadlock_resolved,
			version,
			created_at,
			updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEmergency(row rowScanner) (*models.Emergency, error) {
	var e models.Emergency
	var requiredResource sql.NullString
	if err := row.Scan(
		&e.EmergencyID,
		&e.Type,
		&e.Severity,
		&requiredResource,
		&e.Status,
		&e.DeadlockDetected,
		&e.DeadlockResolved,
		&e.Version,
		&e.CreatedAt,
		&e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if requiredResource.Valid {
		e.RequiredResource = requiredResource.String
	}
	return &e, nil
}

// GetEmergency 根据 emergency_id 获取紧急事件
func (s *PostgresStore) GetEmergency(ctx context.Context, emergencyID string) (*models.Emergency, error) {
	if emergencyID == "" {
		return nil, fmt.Errorf("emergency_id is required")
	}

	query := `SELECT` + emergencyColumns + `
		FROM emergencies
		WHERE emergency_id = $1
	`

	e, err := scanEmergency(s.db.QueryRowContext(ctx, query, emergencyID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("emergency %s: %w", emergencyID, ErrNotFound)
		}
		return nil, classifyError("get emergency", err)
	}
	return e, nil
}

// ListContending 查询争用同一类资源的紧急事件（open/active/waiting）
func (s *PostgresStore) ListContending(ctx context.Context, requiredResource string) ([]*models.Emergency, error) {
	if requiredResource == "" {
		return nil, fmt.Errorf("required_resource is required")
	}

	query := `SELECT` + emergencyColumns + `
		FROM emergencies
		WHERE required_resource = $1
		  AND status = ANY($2)
		ORDER BY created_at ASC, emergency_id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, requiredResource, pq.Array(models.ContendingStatuses))
	if err != nil {
		return nil, classifyError("list contending emergencies", err)
	}
	defer rows.Close()

	var out []*models.Emergency
	for rows.Next() {
		e, err := scanEmergency(rows)
		if err != nil {
			return nil, classifyError("scan emergency", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError("iterate emergencies", err)
	}
	return out, nil
}
