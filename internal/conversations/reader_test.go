package conversations

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wuwenbin0122/chatgate/internal/db"
	"github.com/wuwenbin0122/chatgate/internal/models"
	"github.com/wuwenbin0122/chatgate/internal/utils"
)

// memoryStore mimics the ORDER BY created_at DESC LIMIT n query.
type memoryStore struct {
	records   []models.ConversationRecord
	err       error
	lastLimit int
}

func (m *memoryStore) RecentConversations(ctx context.Context, limit int) ([]models.ConversationRecord, error) {
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}

	sorted := append([]models.ConversationRecord(nil), m.records...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CreatedAt.After(sorted[j].CreatedAt) })
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

func intPtr(v int) *int { return &v }

func TestListNewestFirst(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	store := &memoryStore{records: []models.ConversationRecord{
		{ID: 1, CreatedAt: t1, UserMessage: "one"},
		{ID: 2, CreatedAt: t1.Add(time.Minute), UserMessage: "two"},
		{ID: 3, CreatedAt: t1.Add(2 * time.Minute), UserMessage: "three"},
	}}

	records, err := NewReader(store, Options{}).List(context.Background(), intPtr(2), "chatbot")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, int64(3), records[0].ID)
	assert.Equal(t, int64(2), records[1].ID)
}

func TestListLimitPolicy(t *testing.T) {
	store := &memoryStore{}
	reader := NewReader(store, Options{DefaultLimit: 10, MaxLimit: 50})

	_, err := reader.List(context.Background(), nil, "chatbot")
	require.NoError(t, err)
	assert.Equal(t, 10, store.lastLimit)

	_, err = reader.List(context.Background(), intPtr(10_000), "chatbot")
	require.NoError(t, err)
	assert.Equal(t, 50, store.lastLimit)

	for _, bad := range []int{0, -1} {
		_, err = reader.List(context.Background(), intPtr(bad), "chatbot")
		assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument), "limit %d: %v", bad, err)
	}
}

func TestListEmptyIsNotNil(t *testing.T) {
	records, err := NewReader(&memoryStore{}, Options{}).List(context.Background(), nil, "chatbot")
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestListDatabaseUnavailable(t *testing.T) {
	var pg *db.Postgres

	for name, store := range map[string]Store{
		"no store":        nil,
		"nil pool":        pg,
		"connection lost": &memoryStore{err: fmt.Errorf("postgres: query conversations: %w", db.ErrUnavailable)},
	} {
		t.Run(name, func(t *testing.T) {
			records, err := NewReader(store, Options{}).List(context.Background(), nil, "chatbot")
			assert.Nil(t, records)
			assert.True(t, utils.IsCode(err, utils.CodeUnavailable), "got %v", err)
		})
	}
}

func TestListQueryFailureIsInternal(t *testing.T) {
	store := &memoryStore{err: errors.New("ERROR: permission denied for table conversations")}

	_, err := NewReader(store, Options{}).List(context.Background(), nil, "chatbot")
	assert.True(t, utils.IsCode(err, utils.CodeInternal), "got %v", err)
}

func TestListRequiresIdentity(t *testing.T) {
	_, err := NewReader(&memoryStore{}, Options{}).List(context.Background(), nil, "")
	assert.True(t, utils.IsCode(err, utils.CodeUnauthorized))
}
