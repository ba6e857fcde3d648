package postgres

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/id"
)

func TestAuditService_CompressesLargeSnapshots(t *testing.T) {
	svc, err := NewAuditService(nil, 64)
	require.NoError(t, err)
	defer svc.Close()

	small := AuditEntry{EntityType: AuditEntityJournalEntry, EntityID: id.New(), Changes: json.RawMessage(`{"a":1}`)}
	svc.prepare(&small)
	assert.Equal(t, CompressionNone, small.CompressionAlgo)
	assert.NotEmpty(t, small.Changes)
	assert.False(t, id.IsNil(small.ID))
	assert.False(t, small.CreatedAt.IsZero())

	payload := json.RawMessage(`{"memo":"` + strings.Repeat("x", 500) + `"}`)
	large := AuditEntry{EntityType: AuditEntityJournalEntry, EntityID: id.New(), Changes: payload}
	svc.prepare(&large)
	assert.Equal(t, CompressionZstd, large.CompressionAlgo)
	assert.Nil(t, large.Changes)
	assert.Less(t, len(large.ChangesCompressed), len(payload))

	require.NoError(t, svc.expand(&large))
	assert.JSONEq(t, string(payload), string(large.Changes))
	assert.Nil(t, large.ChangesCompressed)
}

func TestNewAuditService_DefaultThreshold(t *testing.T) {
	svc, err := NewAuditService(nil, 0)
	require.NoError(t, err)
	defer svc.Close()
	assert.Equal(t, DefaultCompressThreshold, svc.compressThreshold)
}
