package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/Gstman420/emergency-response-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestGenerateDecisionExport(t *testing.T) {
	resourceID := "amb-1"
	requestID := "req-1"
	responseID := "resp-1"
	decisions := []*models.Decision{
		{
			DecisionID:       "d-1",
			EmergencyID:      "E1",
			ResolvedBy:       models.ResolvedByAutomatic,
			ResolvedAt:       time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
			RequiredResource: "ambulance",
			LoserIDs:         []string{"E2", "E3"},
		},
		{
			DecisionID:       "d-2",
			EmergencyID:      "E7",
			ResolvedBy:       models.ResolvedByHuman,
			ResolvedAt:       time.Date(2026, 3, 1, 11, 30, 0, 0, time.UTC),
			RequiredResource: "ambulance",
			LoserIDs:         []string{},
			ResourceID:       &resourceID,
			ContextRequestID: &requestID,
			SourceEventID:    &responseID,
		},
	}

	data, err := GenerateDecisionExport(decisions)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{DecisionSheetName}, f.GetSheetList())

	rows, err := f.GetRows(DecisionSheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, DecisionExportHeader, rows[0])
	assert.Equal(t, []string{"d-1", "2026-03-01T10:00:00Z", "automatic", "ambulance", "E1", "E2,E3"}, rows[1])
	assert.Equal(t, []string{"d-2", "2026-03-01T11:30:00Z", "human", "ambulance", "E7", "", "amb-1", "req-1", "resp-1"}, rows[2])
}

func TestGenerateDecisionExport_Empty(t *testing.T) {
	data, err := GenerateDecisionExport(nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(DecisionSheetName)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}
