package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Gstman420/emergency-response-backend/internal/models"
	"github.com/Gstman420/emergency-response-backend/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DecisionCommitter 将仲裁计划或人工决策作为一次原子变更提交，并追加决策记录
type DecisionCommitter struct {
	store  repository.Committer
	logger *zap.Logger
	now    func() time.Time
}

// NewDecisionCommitter 创建决策提交器
func NewDecisionCommitter(store repository.Committer, logger *zap.Logger) *DecisionCommitter {
	return &DecisionCommitter{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CommitAutomatic 提交自动仲裁计划
// 胜者 deadlock_resolved=true；败者 waiting + deadlock_detected；追加 resolved_by=automatic 决策
func (c *DecisionCommitter) CommitAutomatic(ctx context.Context, plan *models.ArbitrationPlan) (*models.Decision, error) {
	now := c.now()
	decision := &models.Decision{
		DecisionID:       uuid.New().String(),
		EmergencyID:      plan.Winner.EmergencyID,
		ResolvedBy:       models.ResolvedByAutomatic,
		ResolvedAt:       now,
		RequiredResource: plan.RequiredResource,
		LoserIDs:         plan.LoserIDs(),
	}

	if err := c.store.ApplyAutomatic(ctx, repository.AutomaticCommit{
		Plan:     plan,
		Decision: decision,
		Now:      now,
	}); err != nil {
		return nil, fmt.Errorf("commit automatic decision for %s: %w", plan.Winner.EmergencyID, err)
	}

	c.logger.Info("Automatic decision committed",
		zap.String("decision_id", decision.DecisionID),
		zap.String("required_resource", plan.RequiredResource),
		zap.String("winner_id", plan.Winner.EmergencyID),
		zap.Int("winner_score", plan.Winner.PriorityScore),
		zap.Strings("loser_ids", decision.LoserIDs),
		zap.Ints("loser_scores", loserScores(plan)),
	)
	return decision, nil
}

// CommitHuman 提交人工决策（responseID 作为幂等键）
// 返回的 Decision 为 nil 表示该响应已处理过
func (c *DecisionCommitter) CommitHuman(ctx context.Context, responseID, chosenEmergencyID string) (*models.Decision, *repository.HumanCommitResult, error) {
	now := c.now()
	decision := &models.Decision{
		DecisionID:  uuid.New().String(),
		EmergencyID: chosenEmergencyID,
		ResolvedBy:  models.ResolvedByHuman,
		ResolvedAt:  now,
		LoserIDs:    []string{},
	}
	if responseID != "" {
		decision.SourceEventID = &responseID
	}

	result, err := c.store.ApplyHuman(ctx, repository.HumanCommit{
		ChosenEmergencyID: chosenEmergencyID,
		Decision:          decision,
		Now:               now,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("commit human decision for %s: %w", chosenEmergencyID, err)
	}
	if result.Duplicate {
		c.logger.Info("Human decision already applied, skipping",
			zap.String("response_id", responseID),
			zap.String("emergency_id", chosenEmergencyID),
		)
		return nil, result, nil
	}

	fields := []zap.Field{
		zap.String("decision_id", decision.DecisionID),
		zap.String("response_id", responseID),
		zap.String("emergency_id", chosenEmergencyID),
		zap.String("required_resource", result.RequiredResource),
	}
	if result.ContextRequestID != nil {
		fields = append(fields, zap.String("context_request_id", *result.ContextRequestID))
	}
	if result.ResourceID == nil {
		c.logger.Warn("Human decision committed without resource allocation (no available resource)", fields...)
	} else {
		c.logger.Info("Human decision committed", append(fields, zap.String("resource_id", *result.ResourceID))...)
	}
	return decision, result, nil
}

func loserScores(plan *models.ArbitrationPlan) []int {
	scores := make([]int, 0, len(plan.Losers))
	for _, l := range plan.Losers {
		scores = append(scores, l.PriorityScore)
	}
	return scores
}
