package arbitration

import (
	"fmt"
	"testing"

	"github.com/Gstman420/emergency-response-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contenders(severities ...int) []*models.Emergency {
	set := make([]*models.Emergency, 0, len(severities))
	for i, s := range severities {
		set = append(set, newEmergency(fmt.Sprintf("E%d", i+1), models.EmergencyTypeMedical, s, "ambulance", models.StatusOpen))
	}
	return set
}

func TestEscalationGate_Graded(t *testing.T) {
	gate, err := NewEscalationGate(PolicyGraded, NewPriorityScorer(nil))
	require.NoError(t, err)

	tests := []struct {
		name      string
		set       []*models.Emergency
		available int
		want      GateDecision
	}{
		{"three contenders three resources", contenders(9, 5, 3), 3, GateNoScarcity},
		{"more resources than contenders", contenders(9, 5), 4, GateNoScarcity},
		{"three contenders one resource", contenders(9, 5, 3), 1, GateEscalate},
		{"two contenders one resource", contenders(9, 5), 1, GateAutomatic},
		{"three contenders two resources", contenders(9, 5, 3), 2, GateAutomatic},
		{"no resources", contenders(9, 5), 0, GateEscalate},
		{"top score tie", contenders(7, 7), 1, GateEscalate},
		{"tie below top is fine", contenders(9, 4, 4), 2, GateAutomatic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, gate.Decide(tt.set, tt.available))
		})
	}
}

func TestEscalationGate_Count(t *testing.T) {
	gate, err := NewEscalationGate(PolicyCount, NewPriorityScorer(nil))
	require.NoError(t, err)

	assert.Equal(t, GateNoScarcity, gate.Decide(contenders(9, 5, 3), 3))
	assert.Equal(t, GateEscalate, gate.Decide(contenders(9, 5), 1))
	assert.Equal(t, GateEscalate, gate.Decide(contenders(9, 5, 3), 1))
}

func TestNewEscalationGate_UnknownPolicy(t *testing.T) {
	_, err := NewEscalationGate("always", NewPriorityScorer(nil))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	gate, err := NewEscalationGate("", NewPriorityScorer(nil))
	require.NoError(t, err)
	assert.Equal(t, PolicyGraded, gate.Policy())
}
