package arbitration

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/Gstman420/emergency-response-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArbitrate_ScenarioFireBeatsMedical(t *testing.T) {
	arbiter := NewArbiter(NewPriorityScorer(nil))
	fire := newEmergency("E1", models.EmergencyTypeFire, 8, "ambulance", models.StatusOpen)
	medical := newEmergency("E2", models.EmergencyTypeMedical, 5, "ambulance", models.StatusOpen)

	plan, err := arbiter.Arbitrate([]*models.Emergency{medical, fire})

	require.NoError(t, err)
	assert.Equal(t, "ambulance", plan.RequiredResource)
	assert.Equal(t, "E1", plan.Winner.EmergencyID)
	assert.Equal(t, 85, plan.Winner.PriorityScore)
	require.Len(t, plan.Losers, 1)
	assert.Equal(t, "E2", plan.Losers[0].EmergencyID)
	assert.Equal(t, 53, plan.Losers[0].PriorityScore)
}

func TestArbitrate_RejectsFewerThanTwo(t *testing.T) {
	arbiter := NewArbiter(NewPriorityScorer(nil))

	_, err := arbiter.Arbitrate(nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = arbiter.Arbitrate([]*models.Emergency{newEmergency("E1", models.EmergencyTypeFire, 8, "ambulance", models.StatusOpen)})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestArbitrate_NilEntriesDoNotCount(t *testing.T) {
	arbiter := NewArbiter(NewPriorityScorer(nil))
	fire := newEmergency("E1", models.EmergencyTypeFire, 8, "ambulance", models.StatusOpen)

	tests := []struct {
		name string
		set  []*models.Emergency
	}{
		{"one real one nil", []*models.Emergency{fire, nil}},
		{"all nil", []*models.Emergency{nil, nil}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				plan *models.ArbitrationPlan
				err  error
			)
			require.NotPanics(t, func() { plan, err = arbiter.Arbitrate(tt.set) })
			assert.Nil(t, plan)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
}

func TestArbitrate_TieBreakOnCreatedAt(t *testing.T) {
	arbiter := NewArbiter(NewPriorityScorer(nil))
	early := newEmergency("E-b", models.EmergencyTypeMedical, 5, "ambulance", models.StatusOpen)
	late := newEmergency("E-a", models.EmergencyTypeMedical, 5, "ambulance", models.StatusOpen)
	late.CreatedAt = early.CreatedAt.Add(time.Minute)

	plan, err := arbiter.Arbitrate([]*models.Emergency{late, early})

	require.NoError(t, err)
	assert.Equal(t, "E-b", plan.Winner.EmergencyID)
}

func TestArbitrate_TieBreakOnIDIsDeterministic(t *testing.T) {
	arbiter := NewArbiter(NewPriorityScorer(nil))
	a := newEmergency("E-100", models.EmergencyTypePolice, 4, "patrol-car", models.StatusOpen)
	b := newEmergency("E-200", models.EmergencyTypePolice, 4, "patrol-car", models.StatusOpen)

	for i := 0; i < 50; i++ {
		set := []*models.Emergency{a, b}
		if i%2 == 1 {
			set = []*models.Emergency{b, a}
		}
		plan, err := arbiter.Arbitrate(set)
		require.NoError(t, err)
		assert.Equal(t, "E-100", plan.Winner.EmergencyID)
	}
}

func TestArbitrate_WinnerDominatesLosers(t *testing.T) {
	arbiter := NewArbiter(NewPriorityScorer(nil))
	types := []string{
		models.EmergencyTypeFire,
		models.EmergencyTypeMedical,
		models.EmergencyTypeAccident,
		models.EmergencyTypePolice,
		models.EmergencyTypeOther,
	}
	rng := rand.New(rand.NewSource(7))
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	for round := 0; round < 100; round++ {
		n := 2 + rng.Intn(8)
		set := make([]*models.Emergency, 0, n)
		for i := 0; i < n; i++ {
			e := newEmergency(fmt.Sprintf("E%02d", i), types[rng.Intn(len(types))], 1+rng.Intn(10), "ambulance", models.StatusOpen)
			e.CreatedAt = base.Add(time.Duration(rng.Intn(5)) * time.Second)
			set = append(set, e)
		}

		plan, err := arbiter.Arbitrate(set)
		require.NoError(t, err)
		assert.Len(t, plan.Losers, n-1)
		for i, l := range plan.Losers {
			assert.GreaterOrEqual(t, plan.Winner.PriorityScore, l.PriorityScore)
			if i > 0 {
				assert.GreaterOrEqual(t, plan.Losers[i-1].PriorityScore, l.PriorityScore)
			}
		}
	}
}

func TestSnapshot_CarriesScores(t *testing.T) {
	scorer := NewPriorityScorer(nil)
	set := []*models.Emergency{
		newEmergency("E1", models.EmergencyTypeMedical, 5, "ambulance", models.StatusOpen),
		newEmergency("E2", models.EmergencyTypeFire, 8, "ambulance", models.StatusOpen),
	}

	snapshot := Snapshot(scorer, set)

	require.Len(t, snapshot, 2)
	assert.Equal(t, "E2", snapshot[0].EmergencyID)
	assert.Equal(t, 85, snapshot[0].Score)
	assert.Equal(t, "ambulance", snapshot[0].RequiredResource)
	assert.Equal(t, "E1", snapshot[1].EmergencyID)
	assert.Equal(t, 53, snapshot[1].Score)
}
