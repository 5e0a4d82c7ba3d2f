package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Gstman420/emergency-response-backend/internal/models"
)

// ListDecisions 查询决策审计日志（按 resolved_at 升序）
func (s *PostgresStore) ListDecisions(ctx context.Context, filters DecisionFilters) ([]*models.Decision, error) {
	where := []string{}
	args := []interface{}{}
	argN := 1
	add := func(cond string, v interface{}) {
		where = append(where, fmt.Sprintf(cond, argN))
		args = append(args, v)
		argN++
	}

	if filters.RequiredResource != nil {
		add("required_resource = $%d", *filters.RequiredResource)
	}
	if filters.ResolvedBy != nil {
		add("resolved_by = $%d", *filters.ResolvedBy)
	}
	if filters.StartTime != nil {
		add("resolved_at >= $%d", *filters.StartTime)
	}
	if filters.EndTime != nil {
		add("resolved_at < $%d", *filters.EndTime)
	}

	query := `
		SELECT
			decision_id,
			emergency_id,
			resolved_by,
			resolved_at,
			required_resource,
			loser_ids,
			resource_id,
			context_request_id,
			source_event_id
		FROM decisions`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	query += "\n\t\tORDER BY resolved_at ASC, decision_id ASC"
	if filters.Limit > 0 {
		query += fmt.Sprintf("\n\t\tLIMIT %d", filters.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyError("list decisions", err)
	}
	defer rows.Close()

	var out []*models.Decision
	for rows.Next() {
		var d models.Decision
		var requiredResource, resourceID, contextRequestID, sourceEventID sql.NullString
		var loserIDs []byte
		if err := rows.Scan(
			&d.DecisionID,
			&d.EmergencyID,
			&d.ResolvedBy,
			&d.ResolvedAt,
			&requiredResource,
			&loserIDs,
			&resourceID,
			&contextRequestID,
			&sourceEventID,
		); err != nil {
			return nil, classifyError("scan decision", err)
		}

		d.RequiredResource = requiredResource.String
		d.ResourceID = stringPtr(resourceID)
		d.ContextRequestID = stringPtr(contextRequestID)
		d.SourceEventID = stringPtr(sourceEventID)
		d.LoserIDs = []string{}
		if len(loserIDs) > 0 {
			if err := json.Unmarshal(loserIDs, &d.LoserIDs); err != nil {
				return nil, fmt.Errorf("failed to unmarshal loser_ids of decision %s: %w", d.DecisionID, err)
			}
		}
		out = append(out, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError("iterate decisions", err)
	}
	return out, nil
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// insertDecision 在事务内追加决策
func insertDecision(ctx context.Context, tx *sql.Tx, d *models.Decision) error {
	loserIDs, err := jsonArray(d.LoserIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal loser_ids: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO decisions (
			decision_id,
			emergency_id,
			resolved_by,
			resolved_at,
			required_resource,
			loser_ids,
			resource_id,
			context_request_id,
			source_event_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		d.DecisionID,
		d.EmergencyID,
		d.ResolvedBy,
		d.ResolvedAt,
		nullableString(d.RequiredResource),
		loserIDs,
		d.ResourceID,
		d.ContextRequestID,
		d.SourceEventID,
	)
	return err
}
