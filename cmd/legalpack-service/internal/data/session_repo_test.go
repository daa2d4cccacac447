package data

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealtracker/cmd/legalpack-service/internal/domain"
)

func TestSessionPORoundTrip(t *testing.T) {
	session := &domain.AnalysisSession{
		ID:         "lps_roundtrip",
		PropertyID: "prop_7",
		Documents: []*domain.ProcessedDocument{
			{Name: "register.pdf", Content: "entries", CharLength: 7, TokenCount: 3},
		},
		InitialAnalysis: "analysis text",
		QAHistory: []domain.QAEntry{
			{Question: "Any charges?", Answer: "One registered charge.", Timestamp: time.Now().UTC().Truncate(time.Second)},
		},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
	}

	po, err := toSessionPO(session)
	require.NoError(t, err)
	restored, err := toDomainSession(po)
	require.NoError(t, err)

	assert.Equal(t, session.ID, restored.ID)
	assert.Equal(t, session.PropertyID, restored.PropertyID)
	assert.Equal(t, session.InitialAnalysis, restored.InitialAnalysis)
	require.Len(t, restored.Documents, 1)
	assert.Equal(t, session.Documents[0], restored.Documents[0])
	require.Len(t, restored.QAHistory, 1)
	assert.Equal(t, session.QAHistory[0].Question, restored.QAHistory[0].Question)
	assert.Equal(t, session.QAHistory[0].Answer, restored.QAHistory[0].Answer)
}

func TestSessionPOEmptyHistory(t *testing.T) {
	session := &domain.AnalysisSession{
		ID: "lps_empty",
		Documents: []*domain.ProcessedDocument{
			{Name: "lease.pdf", Content: "terms", TokenCount: 2},
		},
		InitialAnalysis: "analysis",
		QAHistory:       []domain.QAEntry{},
	}

	po, err := toSessionPO(session)
	require.NoError(t, err)
	assert.Equal(t, "[]", po.QAHistory)

	restored, err := toDomainSession(po)
	require.NoError(t, err)
	assert.Empty(t, restored.QAHistory)
}
