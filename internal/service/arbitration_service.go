package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Gstman420/emergency-response-backend/internal/arbitration"
	"github.com/Gstman420/emergency-response-backend/internal/models"
	"github.com/Gstman420/emergency-response-backend/internal/notify"
	"github.com/Gstman420/emergency-response-backend/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ArbitrationService 处理两类入站事件：新紧急事件、人工决策
// 本身不持有跨调用的可变状态，所有共享状态都在存储中
type ArbitrationService struct {
	store      repository.Store
	scorer     *arbitration.PriorityScorer
	gate       *arbitration.EscalationGate
	arbiter    *arbitration.Arbiter
	committer  *DecisionCommitter
	notifier   notify.Notifier
	maxRetries int
	ingester   EmergencyIngester
	logger     *zap.Logger
}

// EmergencyIngester 无数据库模式下，事件携带的记录由服务写入内存存储
type EmergencyIngester interface {
	AddEmergencyIfAbsent(e models.Emergency) bool
}

// Options 仲裁策略
type Options struct {
	ScoringProfile   string
	EscalationPolicy string
	MaxRetries       int // ErrCommitFailed 后最多重新执行整轮仲裁的次数
	Ingester         EmergencyIngester
}

// NewArbitrationService 创建仲裁服务
func NewArbitrationService(store repository.Store, notifier notify.Notifier, opts Options, logger *zap.Logger) (*ArbitrationService, error) {
	scorer, err := arbitration.NewPriorityScorerForProfile(opts.ScoringProfile)
	if err != nil {
		return nil, err
	}
	gate, err := arbitration.NewEscalationGate(opts.EscalationPolicy, scorer)
	if err != nil {
		return nil, err
	}
	if opts.MaxRetries < 0 {
		return nil, fmt.Errorf("%w: max retries must be >= 0", arbitration.ErrInvalidArgument)
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}

	return &ArbitrationService{
		store:      store,
		scorer:     scorer,
		gate:       gate,
		arbiter:    arbitration.NewArbiter(scorer),
		committer:  NewDecisionCommitter(store, logger),
		notifier:   notifier,
		maxRetries: opts.MaxRetries,
		ingester:   opts.Ingester,
		logger:     logger,
	}, nil
}

// HandleEmergencyCreated 处理新紧急事件
// 读取 → 构建冲突集 → 升级闸门 → 仲裁 → 提交；提交冲突时用新数据重跑整轮
func (s *ArbitrationService) HandleEmergencyCreated(ctx context.Context, evt models.EmergencyCreated) error {
	emergencyID := evt.EmergencyID
	if emergencyID == "" {
		emergencyID = evt.Record.EmergencyID
	}
	if emergencyID == "" {
		s.logger.Warn("Emergency created event without emergency_id, skipping")
		return nil
	}

	if s.ingester != nil && evt.Record.EmergencyID == emergencyID {
		if s.ingester.AddEmergencyIfAbsent(evt.Record) {
			s.logger.Debug("Emergency record ingested", zap.String("emergency_id", emergencyID))
		}
	}

	return s.withRetry(ctx, "emergency.created", emergencyID, func() error {
		return s.arbitrateOnce(ctx, emergencyID)
	})
}

// HandleHumanDecision 处理人工决策（跳过 Arbiter，直接提交选中的紧急事件）
func (s *ArbitrationService) HandleHumanDecision(ctx context.Context, evt models.HumanDecisionCreated) error {
	if evt.ChosenEmergencyID == "" {
		s.logger.Warn("Human decision without chosen_emergency_id, skipping",
			zap.String("response_id", evt.ResponseID),
		)
		return nil
	}

	var decision *models.Decision
	err := s.withRetry(ctx, "context_response.created", evt.ChosenEmergencyID, func() error {
		d, _, err := s.committer.CommitHuman(ctx, evt.ResponseID, evt.ChosenEmergencyID)
		decision = d
		return err
	})
	if err != nil {
		s.logger.Error("Failed to apply human decision",
			zap.String("response_id", evt.ResponseID),
			zap.String("emergency_id", evt.ChosenEmergencyID),
			zap.Error(err),
		)
		return err
	}
	if decision != nil {
		s.publishDecision(ctx, decision)
	}
	return nil
}

// withRetry ErrCommitFailed 最多重试 maxRetries 次；ErrStoreUnavailable 立即重试一次
func (s *ArbitrationService) withRetry(ctx context.Context, event, emergencyID string, fn func() error) error {
	storeRetried := false
	commitRetries := 0
	for {
		err := fn()
		switch {
		case err == nil:
			return nil
		case errors.Is(err, repository.ErrCommitFailed) && commitRetries < s.maxRetries:
			commitRetries++
			s.logger.Info("Commit lost optimistic race, retrying with fresh conflict set",
				zap.String("event", event),
				zap.String("emergency_id", emergencyID),
				zap.Int("attempt", commitRetries),
				zap.Error(err),
			)
		case errors.Is(err, repository.ErrStoreUnavailable) && !storeRetried:
			storeRetried = true
			s.logger.Warn("Store unavailable, retrying once",
				zap.String("event", event),
				zap.String("emergency_id", emergencyID),
				zap.Error(err),
			)
		default:
			return err
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w (last error: %v)", ctxErr, err)
		}
	}
}

// arbitrateOnce 一轮完整的 读取-仲裁-提交
func (s *ArbitrationService) arbitrateOnce(ctx context.Context, emergencyID string) error {
	emergency, err := s.store.GetEmergency(ctx, emergencyID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("Emergency no longer exists, nothing to arbitrate",
				zap.String("emergency_id", emergencyID),
			)
			return nil
		}
		return err
	}

	if emergency.RequiredResource == "" {
		s.logger.Info("Emergency has no required_resource, no conflict",
			zap.String("emergency_id", emergencyID),
		)
		return nil
	}

	active, err := s.store.ListContending(ctx, emergency.RequiredResource)
	if err != nil {
		return err
	}

	conflictSet, err := arbitration.BuildConflicts(emergency, active)
	if err != nil {
		if errors.Is(err, arbitration.ErrValidation) {
			s.logger.Warn("Invalid emergency, skipping arbitration",
				zap.String("emergency_id", emergencyID),
				zap.Error(err),
			)
			return nil
		}
		return err
	}
	if len(conflictSet) == 0 {
		s.logger.Debug("No contention",
			zap.String("emergency_id", emergencyID),
			zap.String("required_resource", emergency.RequiredResource),
		)
		return nil
	}

	available, err := s.store.CountAvailable(ctx, emergency.RequiredResource)
	if err != nil {
		return err
	}

	logFields := []zap.Field{
		zap.String("emergency_id", emergencyID),
		zap.String("required_resource", emergency.RequiredResource),
		zap.Int("contenders", len(conflictSet)),
		zap.Int("available", available),
	}

	// 该类资源已有 pending 请求：自动仲裁暂停，只刷新快照
	pending, err := s.store.HasPendingContextRequest(ctx, emergency.RequiredResource)
	if err != nil {
		return err
	}
	if pending {
		snapshot := arbitration.Snapshot(s.scorer, conflictSet)
		if err := s.store.RefreshPendingContextRequest(ctx, emergency.RequiredResource, snapshot, available); err != nil {
			return err
		}
		s.logger.Info("Resource class awaiting human decision, snapshot refreshed", logFields...)
		return nil
	}

	switch s.gate.Decide(conflictSet, available) {
	case arbitration.GateNoScarcity:
		s.logger.Info("No scarcity, all contenders can be served", logFields...)
		return nil
	case arbitration.GateEscalate:
		return s.escalate(ctx, emergency.RequiredResource, conflictSet, available, logFields)
	}

	plan, err := s.arbiter.Arbitrate(conflictSet)
	if err != nil {
		return err
	}
	if plan.AlreadyApplied() {
		s.logger.Info("Conflict set already resolved, no-op",
			append(logFields, zap.String("winner_id", plan.Winner.EmergencyID))...,
		)
		return nil
	}

	decision, err := s.committer.CommitAutomatic(ctx, plan)
	if err != nil {
		return err
	}
	s.publishDecision(ctx, decision)
	return nil
}

// escalate 创建人工请求（每类资源同时最多一个 pending）
func (s *ArbitrationService) escalate(ctx context.Context, requiredResource string, conflictSet []*models.Emergency, available int, logFields []zap.Field) error {
	snapshot := arbitration.Snapshot(s.scorer, conflictSet)
	req := &models.ContextRequest{
		RequestID:        uuid.New().String(),
		RequiredResource: requiredResource,
		Emergencies:      snapshot,
		AvailableCount:   available,
		Status:           models.ContextRequestPending,
		CreatedAt:        time.Now().UTC(),
	}

	created, err := s.store.CreateContextRequest(ctx, req)
	if err != nil {
		return err
	}
	if !created {
		// 并发的另一轮已创建
		if err := s.store.RefreshPendingContextRequest(ctx, requiredResource, snapshot, available); err != nil {
			return err
		}
		s.logger.Info("Escalation already pending, snapshot refreshed", logFields...)
		return nil
	}

	s.logger.Info("Escalated to human decision",
		append(logFields,
			zap.String("request_id", req.RequestID),
			zap.String("policy", s.gate.Policy()),
			zap.Any("snapshot", snapshotSummary(snapshot)),
		)...,
	)
	if err := s.notifier.EscalationRequested(ctx, req); err != nil {
		s.logger.Warn("Escalation notification failed",
			zap.String("request_id", req.RequestID),
			zap.Error(err),
		)
	}
	return nil
}

func (s *ArbitrationService) publishDecision(ctx context.Context, decision *models.Decision) {
	if err := s.notifier.DecisionCommitted(ctx, decision); err != nil {
		s.logger.Warn("Decision notification failed",
			zap.String("decision_id", decision.DecisionID),
			zap.Error(err),
		)
	}
}

// snapshotSummary emergency_id → score
func snapshotSummary(snapshot []models.EmergencySnapshot) map[string]int {
	out := make(map[string]int, len(snapshot))
	for _, e := range snapshot {
		out[e.EmergencyID] = e.Score
	}
	return out
}
