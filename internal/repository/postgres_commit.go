package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ApplyAutomatic 在单个事务中应用自动仲裁计划
// 每行更新都带 version 条件，任一行 0 rows affected 即整体回滚并返回 ErrCommitFailed
func (s *PostgresStore) ApplyAutomatic(ctx context.Context, cmd AutomaticCommit) error {
	if cmd.Plan == nil || cmd.Decision == nil {
		return fmt.Errorf("plan and decision are required")
	}
	plan := cmd.Plan

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classifyError("begin automatic commit", err)
	}
	defer tx.Rollback()

	// 1. 胜者：deadlock_resolved = true
	if err := updateVersioned(ctx, tx, `
		UPDATE emergencies
		SET deadlock_resolved = TRUE,
		    updated_at = $2,
		    version = version + 1
		WHERE emergency_id = $1
		  AND version = $3
	`, plan.Winner.EmergencyID, cmd.Now, plan.Winner.Version); err != nil {
		return err
	}

	// 2. 败者：waiting + deadlock_detected
	for _, l := range plan.Losers {
		if err := updateVersioned(ctx, tx, `
			UPDATE emergencies
			SET status = 'waiting',
			    deadlock_detected = TRUE,
			    deadlock_resolved = FALSE,
			    updated_at = $2,
			    version = version + 1
			WHERE emergency_id = $1
			  AND version = $3
		`, l.EmergencyID, cmd.Now, l.Version); err != nil {
			return err
		}
	}

	// 3. 追加决策
	if err := insertDecision(ctx, tx, cmd.Decision); err != nil {
		return classifyError("insert decision", err)
	}

	if err := tx.Commit(); err != nil {
		return classifyError("commit automatic decision", err)
	}
	return nil
}

func updateVersioned(ctx context.Context, tx *sql.Tx, query, emergencyID string, now time.Time, version int64) error {
	result, err := tx.ExecContext(ctx, query, emergencyID, now, version)
	if err != nil {
		return classifyError("update emergency", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return classifyError("update emergency", err)
	}
	if affected == 0 {
		return fmt.Errorf("emergency %s changed since read (version %d): %w", emergencyID, version, ErrCommitFailed)
	}
	return nil
}

// ApplyHuman 在单个事务中应用人工决策
// 选中事件 assigned → 分配首个可用资源 → 消费 pending 请求 → 追加决策
func (s *PostgresStore) ApplyHuman(ctx context.Context, cmd HumanCommit) (*HumanCommitResult, error) {
	if cmd.ChosenEmergencyID == "" || cmd.Decision == nil {
		return nil, fmt.Errorf("chosen_emergency_id and decision are required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classifyError("begin human commit", err)
	}
	defer tx.Rollback()

	// 0. 幂等：同一人工响应只处理一次
	if cmd.Decision.SourceEventID != nil {
		var exists bool
		err := tx.QueryRowContext(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM decisions WHERE source_event_id = $1
			)
		`, *cmd.Decision.SourceEventID).Scan(&exists)
		if err != nil {
			return nil, classifyError("check duplicate human decision", err)
		}
		if exists {
			return &HumanCommitResult{Duplicate: true}, nil
		}
	}

	// 1. 选中事件 → assigned（已 assigned 的事件不再分配第二个资源）
	var requiredResource sql.NullString
	err = tx.QueryRowContext(ctx, `
		UPDATE emergencies
		SET status = 'assigned',
		    deadlock_resolved = TRUE,
		    updated_at = $2,
		    version = version + 1
		WHERE emergency_id = $1
		  AND status <> 'assigned'
		RETURNING required_resource
	`, cmd.ChosenEmergencyID, cmd.Now).Scan(&requiredResource)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.unassignableHuman(ctx, tx, cmd.ChosenEmergencyID)
		}
		return nil, classifyError("assign emergency", err)
	}

	result := &HumanCommitResult{RequiredResource: requiredResource.String}

	if requiredResource.Valid && requiredResource.String != "" {
		// 2. 分配一个可用资源（取第一个，不做二次排序）
		var resourceID string
		err = tx.QueryRowContext(ctx, `
			SELECT resource_id
			FROM resources
			WHERE resource_type = $1
			  AND available = TRUE
			ORDER BY resource_id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		`, requiredResource.String).Scan(&resourceID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			s.logger.Warn("No available resource for human decision, recording decision without allocation",
				zap.String("emergency_id", cmd.ChosenEmergencyID),
				zap.String("required_resource", requiredResource.String),
			)
		case err != nil:
			return nil, classifyError("select available resource", err)
		default:
			if _, err := tx.ExecContext(ctx, `
				UPDATE resources
				SET available = FALSE,
				    updated_at = $2
				WHERE resource_id = $1
			`, resourceID, cmd.Now); err != nil {
				return nil, classifyError("allocate resource", err)
			}
			result.ResourceID = &resourceID
		}

		// 3. 消费该类资源的 pending 请求
		var requestID string
		err = tx.QueryRowContext(ctx, `
			UPDATE context_requests
			SET status = 'resolved',
			    resolved_at = $2,
			    chosen_emergency_id = $3
			WHERE required_resource = $1
			  AND status = 'pending'
			RETURNING request_id
		`, requiredResource.String, cmd.Now, cmd.ChosenEmergencyID).Scan(&requestID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return nil, classifyError("resolve context request", err)
		default:
			result.ContextRequestID = &requestID
		}
	}

	// 4. 追加决策
	d := cmd.Decision
	d.RequiredResource = result.RequiredResource
	d.ResourceID = result.ResourceID
	d.ContextRequestID = result.ContextRequestID
	if err := insertDecision(ctx, tx, d); err != nil {
		// 并发重复投递：另一事务已写入同一 source_event_id
		if d.SourceEventID != nil && isUniqueViolation(err) {
			return &HumanCommitResult{Duplicate: true}, nil
		}
		return nil, classifyError("insert decision", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, classifyError("commit human decision", err)
	}
	return result, nil
}

// unassignableHuman 区分「事件不存在」与「事件已被另一人工响应分配」
func (s *PostgresStore) unassignableHuman(ctx context.Context, tx *sql.Tx, emergencyID string) (*HumanCommitResult, error) {
	var exists bool
	if err := tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM emergencies WHERE emergency_id = $1
		)
	`, emergencyID).Scan(&exists); err != nil {
		return nil, classifyError("check emergency", err)
	}
	if !exists {
		return nil, fmt.Errorf("emergency %s: %w", emergencyID, ErrNotFound)
	}
	s.logger.Info("Emergency already assigned, ignoring human decision",
		zap.String("emergency_id", emergencyID),
	)
	return &HumanCommitResult{Duplicate: true}, nil
}
