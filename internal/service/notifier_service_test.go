package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campushq/registrar-api/internal/models"
	"github.com/campushq/registrar-api/pkg/jobs"
	appErrors "github.com/campushq/registrar-api/pkg/errors"
)

type mockNotificationStore struct {
	mu      sync.Mutex
	created []models.Notification
	read    map[string]time.Time

	createErrs int
}

func newMockNotificationStore() *mockNotificationStore {
	return &mockNotificationStore{read: make(map[string]time.Time)}
}

func (m *mockNotificationStore) Create(ctx context.Context, notification *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErrs > 0 {
		m.createErrs--
		return sql.ErrConnDone
	}
	m.created = append(m.created, *notification)
	return nil
}

func (m *mockNotificationStore) ListByStudent(ctx context.Context, studentID string, limit int) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []models.Notification
	for _, n := range m.created {
		if n.StudentID == studentID {
			list = append(list, n)
		}
	}
	return list, nil
}

func (m *mockNotificationStore) MarkRead(ctx context.Context, id string, ts time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.created {
		if n.ID == id {
			m.read[id] = ts
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *mockNotificationStore) countCreated() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.created)
}

func testQueueConfig() jobs.QueueConfig {
	return jobs.QueueConfig{Workers: 1, BufferSize: 8, MaxRetries: 3, RetryDelay: time.Millisecond}
}

func waitForCreated(t *testing.T, store *mockNotificationStore, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if store.countCreated() >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d delivered notifications, got %d", want, store.countCreated())
}

func TestNotifierDeliversAsynchronously(t *testing.T) {
	store := newMockNotificationStore()
	svc := NewNotifierService(store, testQueueConfig(), zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	svc.Notify("s1", models.NotificationEnrollmentApproved, "Payment approved", "Your enrollment is active.", "/enrollments/e1")
	waitForCreated(t, store, 1)

	inbox, err := svc.ListByStudent(context.Background(), "s1", 10)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, models.NotificationEnrollmentApproved, inbox[0].Kind)
	assert.NotEmpty(t, inbox[0].ID)
}

func TestNotifierRetriesFailedDelivery(t *testing.T) {
	store := newMockNotificationStore()
	store.createErrs = 2
	svc := NewNotifierService(store, testQueueConfig(), zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	svc.Notify("s1", models.NotificationWaitlistPromoted, "Promoted", "A seat opened up.", "/enrollments/e1")
	waitForCreated(t, store, 1)
}

func TestNotifierMarkRead(t *testing.T) {
	store := newMockNotificationStore()
	svc := NewNotifierService(store, testQueueConfig(), zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	svc.Notify("s1", models.NotificationEnrollmentCreated, "Enrolled", "You are in.", "/enrollments/e1")
	waitForCreated(t, store, 1)

	inbox, err := svc.ListByStudent(context.Background(), "s1", 10)
	require.NoError(t, err)
	require.Len(t, inbox, 1)

	require.NoError(t, svc.MarkRead(context.Background(), inbox[0].ID))

	err = svc.MarkRead(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
