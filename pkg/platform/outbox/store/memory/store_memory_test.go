package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/pkg/platform/outbox"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("insert assigns id and created_at", func(t *testing.T) {
		store := NewInMemoryStore()
		require.NoError(t, store.Insert(ctx, outbox.Entry{
			AggregateType: outbox.AggregateAudit,
			AggregateID:   "chk-1",
			EventType:     "screening_check_completed",
			Payload:       []byte(`{}`),
		}))

		all := store.All()
		require.Len(t, all, 1)
		assert.NotEqual(t, uuid.Nil, all[0].ID)
		assert.False(t, all[0].CreatedAt.IsZero())
	})

	t.Run("fetch skips published and honors limit", func(t *testing.T) {
		store := NewInMemoryStore()
		for i := 0; i < 5; i++ {
			require.NoError(t, store.Insert(ctx, outbox.Entry{
				AggregateType: outbox.AggregateWebhook,
				AggregateID:   "sub-1",
				EventType:     "monitoring.alert.created",
			}))
		}

		first, err := store.FetchUnpublished(ctx, 2)
		require.NoError(t, err)
		require.Len(t, first, 2)

		ids := []uuid.UUID{first[0].ID, first[1].ID}
		require.NoError(t, store.MarkPublished(ctx, ids, time.Now()))

		rest, err := store.FetchUnpublished(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, rest, 3)
		for _, e := range rest {
			assert.NotContains(t, ids, e.ID)
		}
	})

	t.Run("mark published is idempotent", func(t *testing.T) {
		store := NewInMemoryStore()
		require.NoError(t, store.Insert(ctx, outbox.Entry{AggregateType: outbox.AggregateAudit}))

		entries, err := store.FetchUnpublished(ctx, 1)
		require.NoError(t, err)
		require.Len(t, entries, 1)

		first := time.Now().Add(-time.Hour)
		require.NoError(t, store.MarkPublished(ctx, []uuid.UUID{entries[0].ID}, first))
		require.NoError(t, store.MarkPublished(ctx, []uuid.UUID{entries[0].ID}, time.Now()))

		all := store.All()
		require.NotNil(t, all[0].PublishedAt)
		assert.True(t, all[0].PublishedAt.Equal(first))
	})
}
