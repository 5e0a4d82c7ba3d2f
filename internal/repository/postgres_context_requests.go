package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Gstman420/emergency-response-backend/internal/models"
)

// HasPendingContextRequest 某类资源是否存在 pending 请求
func (s *PostgresStore) HasPendingContextRequest(ctx context.Context, requiredResource string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM context_requests
			WHERE required_resource = $1
			  AND status = 'pending'
		)
	`, requiredResource).Scan(&exists)
	if err != nil {
		return false, classifyError("check pending context request", err)
	}
	return exists, nil
}

// CreateContextRequest 创建 pending 请求
// 依赖部分唯一索引 (required_resource) WHERE status = 'pending' 去重
func (s *PostgresStore) CreateContextRequest(ctx context.Context, req *models.ContextRequest) (bool, error) {
	if req == nil {
		return false, fmt.Errorf("context request is required")
	}
	if req.RequestID == "" || req.RequiredResource == "" {
		return false, fmt.Errorf("request_id and required_resource are required")
	}

	snapshot, err := json.Marshal(req.Emergencies)
	if err != nil {
		return false, fmt.Errorf("failed to marshal emergencies snapshot: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO context_requests (
			request_id,
			required_resource,
			emergencies,
			available_count,
			status,
			created_at
		) VALUES ($1, $2, $3, $4, 'pending', $5)
		ON CONFLICT (required_resource) WHERE status = 'pending' DO NOTHING
	`,
		req.RequestID,
		req.RequiredResource,
		string(snapshot),
		req.AvailableCount,
		req.CreatedAt,
	)
	if err != nil {
		return false, classifyError("create context request", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, classifyError("create context request", err)
	}
	return affected == 1, nil
}

// RefreshPendingContextRequest 用最新冲突集刷新 pending 请求的快照
func (s *PostgresStore) RefreshPendingContextRequest(ctx context.Context, requiredResource string, snapshot []models.EmergencySnapshot, availableCount int) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal emergencies snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE context_requests
		SET emergencies = $2,
		    available_count = $3
		WHERE required_resource = $1
		  AND status = 'pending'
	`, requiredResource, string(data), availableCount)
	if err != nil {
		return classifyError("refresh context request", err)
	}
	return nil
}
