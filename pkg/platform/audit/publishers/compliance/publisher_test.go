package compliance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "vigil/pkg/domain"
	"vigil/pkg/platform/audit"
	"vigil/pkg/platform/audit/store/memory"
)

type failingStore struct{}

func (failingStore) Append(context.Context, audit.Event) error {
	return errors.New("outbox unavailable")
}

func TestEmit(t *testing.T) {
	tenantID := id.NewTenantID()
	subjectID := id.NewSubjectID()

	t.Run("persists valid event and fills defaults", func(t *testing.T) {
		store := memory.NewInMemoryStore()
		pub := New(store)

		err := pub.Emit(context.Background(), audit.Event{
			TenantID:     tenantID,
			SubjectID:    subjectID,
			Actor:        "system",
			Action:       string(audit.EventCheckCompleted),
			ResourceType: "screening_check",
			ResourceID:   "chk-1",
		})
		require.NoError(t, err)

		events := store.ListAll(context.Background())
		require.Len(t, events, 1)
		assert.Equal(t, audit.CategoryCompliance, events[0].Category)
		assert.False(t, events[0].Timestamp.IsZero())
	})

	t.Run("rejects event without tenant", func(t *testing.T) {
		pub := New(memory.NewInMemoryStore())

		err := pub.Emit(context.Background(), audit.Event{
			Actor:  "system",
			Action: string(audit.EventCheckCreated),
		})
		assert.Error(t, err)
	})

	t.Run("rejects event without action", func(t *testing.T) {
		pub := New(memory.NewInMemoryStore())

		err := pub.Emit(context.Background(), audit.Event{
			TenantID: tenantID,
			Actor:    "system",
		})
		assert.Error(t, err)
	})

	t.Run("rejects event without actor", func(t *testing.T) {
		pub := New(memory.NewInMemoryStore())

		err := pub.Emit(context.Background(), audit.Event{
			TenantID: tenantID,
			Action:   string(audit.EventCheckCreated),
		})
		assert.Error(t, err)
	})

	t.Run("fails closed when store fails", func(t *testing.T) {
		pub := New(failingStore{})

		err := pub.Emit(context.Background(), audit.Event{
			TenantID:  tenantID,
			Actor:     "system",
			Action:    string(audit.EventHitResolved),
			Timestamp: time.Now(),
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "persistence failed")
	})
}
