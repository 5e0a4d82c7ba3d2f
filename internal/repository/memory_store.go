package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Gstman420/emergency-response-backend/internal/models"
)

// MemoryStore 进程内存储，DB_ENABLED=false 时使用，也用于端到端测试
// 所有写操作在同一把锁内完成，版本检查语义与 PostgresStore 一致
type MemoryStore struct {
	mu              sync.RWMutex
	emergencies     map[string]models.Emergency // emergencyID -> Emergency
	resources       map[string]models.Resource  // resourceID -> Resource
	decisions       []models.Decision
	contextRequests []models.ContextRequest
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		emergencies: map[string]models.Emergency{},
		resources:   map[string]models.Resource{},
	}
}

var _ Store = (*MemoryStore)(nil)

// PutEmergency 写入或覆盖紧急事件（事件入口和测试数据准备用）
func (s *MemoryStore) PutEmergency(e models.Emergency) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emergencies[e.EmergencyID] = e
}

// AddEmergencyIfAbsent 记录不存在时写入（重复投递不覆盖已变更的状态）
func (s *MemoryStore) AddEmergencyIfAbsent(e models.Emergency) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.emergencies[e.EmergencyID]; ok {
		return false
	}
	s.emergencies[e.EmergencyID] = e
	return true
}

// PutResource 写入或覆盖资源
func (s *MemoryStore) PutResource(r models.Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources[r.ResourceID] = r
}

// Emergency 返回紧急事件副本
func (s *MemoryStore) Emergency(id string) (models.Emergency, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.emergencies[id]
	return e, ok
}

// Resource 返回资源副本
func (s *MemoryStore) Resource(id string) (models.Resource, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.resources[id]
	return r, ok
}

// Decisions 返回全部决策（按写入顺序）
func (s *MemoryStore) Decisions() []models.Decision {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Decision, len(s.decisions))
	copy(out, s.decisions)
	return out
}

// ContextRequests 返回全部人工请求（按创建顺序）
func (s *MemoryStore) ContextRequests() []models.ContextRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ContextRequest, len(s.contextRequests))
	copy(out, s.contextRequests)
	return out
}

func (s *MemoryStore) GetEmergency(_ context.Context, emergencyID string) (*models.Emergency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.emergencies[emergencyID]
	if !ok {
		return nil, fmt.Errorf("emergency %s: %w", emergencyID, ErrNotFound)
	}
	return &e, nil
}

func (s *MemoryStore) ListContending(_ context.Context, requiredResource string) ([]*models.Emergency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Emergency, 0)
	for _, e := range s.emergencies {
		if e.RequiredResource != requiredResource || !e.IsContending() {
			continue
		}
		e := e
		out = append(out, &e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].EmergencyID < out[j].EmergencyID
	})
	return out, nil
}

func (s *MemoryStore) CountAvailable(_ context.Context, resourceType string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.resources {
		if r.ResourceType == resourceType && r.Available {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) HasPendingContextRequest(_ context.Context, requiredResource string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pendingIndex(requiredResource) >= 0, nil
}

// pendingIndex 调用方需持有锁
func (s *MemoryStore) pendingIndex(requiredResource string) int {
	for i, req := range s.contextRequests {
		if req.RequiredResource == requiredResource && req.Status == models.ContextRequestPending {
			return i
		}
	}
	return -1
}

func (s *MemoryStore) CreateContextRequest(_ context.Context, req *models.ContextRequest) (bool, error) {
	if req == nil {
		return false, fmt.Errorf("context request is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pendingIndex(req.RequiredResource) >= 0 {
		return false, nil
	}
	stored := *req
	stored.Status = models.ContextRequestPending
	stored.Emergencies = append([]models.EmergencySnapshot(nil), req.Emergencies...)
	s.contextRequests = append(s.contextRequests, stored)
	return true, nil
}

func (s *MemoryStore) RefreshPendingContextRequest(_ context.Context, requiredResource string, snapshot []models.EmergencySnapshot, availableCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.pendingIndex(requiredResource)
	if i < 0 {
		return nil
	}
	s.contextRequests[i].Emergencies = append([]models.EmergencySnapshot(nil), snapshot...)
	s.contextRequests[i].AvailableCount = availableCount
	return nil
}

func (s *MemoryStore) ListDecisions(_ context.Context, filters DecisionFilters) ([]*models.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Decision, 0, len(s.decisions))
	for _, d := range s.decisions {
		if filters.RequiredResource != nil && d.RequiredResource != *filters.RequiredResource {
			continue
		}
		if filters.ResolvedBy != nil && d.ResolvedBy != *filters.ResolvedBy {
			continue
		}
		if filters.StartTime != nil && d.ResolvedAt.Before(*filters.StartTime) {
			continue
		}
		if filters.EndTime != nil && !d.ResolvedAt.Before(*filters.EndTime) {
			continue
		}
		d := d
		out = append(out, &d)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ResolvedAt.Equal(out[j].ResolvedAt) {
			return out[i].ResolvedAt.Before(out[j].ResolvedAt)
		}
		return out[i].DecisionID < out[j].DecisionID
	})
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, nil
}

func (s *MemoryStore) ApplyAutomatic(_ context.Context, cmd AutomaticCommit) error {
	if cmd.Plan == nil || cmd.Decision == nil {
		return fmt.Errorf("plan and decision are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	plan := cmd.Plan
	all := append([]models.ScoredEmergency{plan.Winner}, plan.Losers...)
	for _, se := range all {
		cur, ok := s.emergencies[se.EmergencyID]
		if !ok || cur.Version != se.Version {
			return fmt.Errorf("emergency %s changed since read (version %d): %w", se.EmergencyID, se.Version, ErrCommitFailed)
		}
	}

	w := s.emergencies[plan.Winner.EmergencyID]
	w.DeadlockResolved = true
	w.UpdatedAt = cmd.Now
	w.Version++
	s.emergencies[w.EmergencyID] = w

	for _, l := range plan.Losers {
		e := s.emergencies[l.EmergencyID]
		e.Status = models.StatusWaiting
		e.DeadlockDetected = true
		e.DeadlockResolved = false
		e.UpdatedAt = cmd.Now
		e.Version++
		s.emergencies[e.EmergencyID] = e
	}

	d := *cmd.Decision
	d.LoserIDs = append([]string{}, cmd.Decision.LoserIDs...)
	s.decisions = append(s.decisions, d)
	return nil
}

func (s *MemoryStore) ApplyHuman(_ context.Context, cmd HumanCommit) (*HumanCommitResult, error) {
	if cmd.ChosenEmergencyID == "" || cmd.Decision == nil {
		return nil, fmt.Errorf("chosen_emergency_id and decision are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if src := cmd.Decision.SourceEventID; src != nil {
		for _, d := range s.decisions {
			if d.SourceEventID != nil && *d.SourceEventID == *src {
				return &HumanCommitResult{Duplicate: true}, nil
			}
		}
	}

	e, ok := s.emergencies[cmd.ChosenEmergencyID]
	if !ok {
		return nil, fmt.Errorf("emergency %s: %w", cmd.ChosenEmergencyID, ErrNotFound)
	}
	if e.Status == models.StatusAssigned {
		return &HumanCommitResult{Duplicate: true}, nil
	}
	e.Status = models.StatusAssigned
	e.DeadlockResolved = true
	e.UpdatedAt = cmd.Now
	e.Version++

	result := &HumanCommitResult{RequiredResource: e.RequiredResource}
	if e.RequiredResource != "" {
		ids := make([]string, 0)
		for id, r := range s.resources {
			if r.ResourceType == e.RequiredResource && r.Available {
				ids = append(ids, id)
			}
		}
		if len(ids) > 0 {
			sort.Strings(ids)
			r := s.resources[ids[0]]
			r.Available = false
			r.UpdatedAt = cmd.Now
			s.resources[r.ResourceID] = r
			id := r.ResourceID
			result.ResourceID = &id
		}

		if i := s.pendingIndex(e.RequiredResource); i >= 0 {
			now := cmd.Now
			chosen := cmd.ChosenEmergencyID
			s.contextRequests[i].Status = models.ContextRequestResolved
			s.contextRequests[i].ResolvedAt = &now
			s.contextRequests[i].ChosenEmergencyID = &chosen
			reqID := s.contextRequests[i].RequestID
			result.ContextRequestID = &reqID
		}
	}
	s.emergencies[e.EmergencyID] = e

	d := cmd.Decision
	d.RequiredResource = result.RequiredResource
	d.ResourceID = result.ResourceID
	d.ContextRequestID = result.ContextRequestID
	stored := *d
	stored.LoserIDs = append([]string{}, d.LoserIDs...)
	s.decisions = append(s.decisions, stored)
	return result, nil
}
