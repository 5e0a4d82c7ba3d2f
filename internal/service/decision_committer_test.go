package service

import (
	"context"
	"testing"
	"time"

	"github.com/Gstman420/emergency-response-backend/internal/models"
	"github.com/Gstman420/emergency-response-backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockCommitter 是 repository.Committer 的 mock 实现
type MockCommitter struct {
	mock.Mock
}

func (m *MockCommitter) ApplyAutomatic(ctx context.Context, cmd repository.AutomaticCommit) error {
	args := m.Called(ctx, cmd)
	return args.Error(0)
}

func (m *MockCommitter) ApplyHuman(ctx context.Context, cmd repository.HumanCommit) (*repository.HumanCommitResult, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.HumanCommitResult), args.Error(1)
}

func fixedCommitter(store repository.Committer) *DecisionCommitter {
	c := NewDecisionCommitter(store, zap.NewNop())
	c.now = func() time.Time { return baseTime }
	return c
}

func TestCommitAutomatic_BuildsDecision(t *testing.T) {
	m := &MockCommitter{}
	c := fixedCommitter(m)

	plan := &models.ArbitrationPlan{
		RequiredResource: "ambulance",
		Winner:           models.ScoredEmergency{Emergency: models.Emergency{EmergencyID: "E1"}, PriorityScore: 85},
		Losers: []models.ScoredEmergency{
			{Emergency: models.Emergency{EmergencyID: "E3"}, PriorityScore: 74},
			{Emergency: models.Emergency{EmergencyID: "E2"}, PriorityScore: 53},
		},
	}
	m.On("ApplyAutomatic", mock.Anything, mock.MatchedBy(func(cmd repository.AutomaticCommit) bool {
		return cmd.Plan == plan && cmd.Now.Equal(baseTime)
	})).Return(nil)

	d, err := c.CommitAutomatic(context.Background(), plan)

	require.NoError(t, err)
	assert.NotEmpty(t, d.DecisionID)
	assert.Equal(t, "E1", d.EmergencyID)
	assert.Equal(t, models.ResolvedByAutomatic, d.ResolvedBy)
	assert.Equal(t, []string{"E3", "E2"}, d.LoserIDs)
	assert.Equal(t, "ambulance", d.RequiredResource)
	assert.True(t, d.ResolvedAt.Equal(baseTime))
	m.AssertExpectations(t)
}

func TestCommitAutomatic_PropagatesCommitFailed(t *testing.T) {
	m := &MockCommitter{}
	c := fixedCommitter(m)
	m.On("ApplyAutomatic", mock.Anything, mock.Anything).Return(repository.ErrCommitFailed)

	d, err := c.CommitAutomatic(context.Background(), &models.ArbitrationPlan{
		Winner: models.ScoredEmergency{Emergency: models.Emergency{EmergencyID: "E1"}},
	})

	assert.Nil(t, d)
	assert.ErrorIs(t, err, repository.ErrCommitFailed)
}

func TestCommitHuman_SetsSourceEvent(t *testing.T) {
	m := &MockCommitter{}
	c := fixedCommitter(m)

	resourceID := "amb-1"
	m.On("ApplyHuman", mock.Anything, mock.MatchedBy(func(cmd repository.HumanCommit) bool {
		return cmd.ChosenEmergencyID == "E7" &&
			cmd.Decision.SourceEventID != nil && *cmd.Decision.SourceEventID == "resp-1" &&
			cmd.Decision.ResolvedBy == models.ResolvedByHuman
	})).Return(&repository.HumanCommitResult{RequiredResource: "ambulance", ResourceID: &resourceID}, nil)

	d, result, err := c.CommitHuman(context.Background(), "resp-1", "E7")

	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "E7", d.EmergencyID)
	assert.Equal(t, "amb-1", *result.ResourceID)
	m.AssertExpectations(t)
}

func TestCommitHuman_Duplicate(t *testing.T) {
	m := &MockCommitter{}
	c := fixedCommitter(m)
	m.On("ApplyHuman", mock.Anything, mock.Anything).Return(&repository.HumanCommitResult{Duplicate: true}, nil)

	d, result, err := c.CommitHuman(context.Background(), "resp-1", "E7")

	require.NoError(t, err)
	assert.Nil(t, d)
	assert.True(t, result.Duplicate)
}

func TestCommitHuman_NotFound(t *testing.T) {
	m := &MockCommitter{}
	c := fixedCommitter(m)
	m.On("ApplyHuman", mock.Anything, mock.Anything).Return(nil, repository.ErrNotFound)

	d, result, err := c.CommitHuman(context.Background(), "resp-1", "ghost")

	assert.Nil(t, d)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
