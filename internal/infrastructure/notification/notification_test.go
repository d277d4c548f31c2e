package notification

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"signflow/internal/config"
	"signflow/internal/domain/entity"
	"signflow/internal/infrastructure/metrics"
	"signflow/internal/infrastructure/redis"
)

type memQueue struct {
	mu    sync.Mutex
	items map[string][]string
}

func newMemQueue() *memQueue {
	return &memQueue{items: map[string][]string{}}
}

func (q *memQueue) Push(ctx context.Context, key string, values ...interface{}) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, v := range values {
		switch s := v.(type) {
		case []byte:
			q.items[key] = append([]string{string(s)}, q.items[key]...)
		case string:
			q.items[key] = append([]string{s}, q.items[key]...)
		}
	}
	return nil
}

func (q *memQueue) PopBlocking(ctx context.Context, key string, timeout time.Duration) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	list := q.items[key]
	if len(list) == 0 {
		q.mu.Unlock()
		select {
		case <-ctx.Done():
		case <-time.After(5 * time.Millisecond):
		}
		q.mu.Lock()
		return "", redis.ErrNil
	}
	v := list[len(list)-1]
	q.items[key] = list[:len(list)-1]
	return v, nil
}

type memNotifications struct {
	mu        sync.Mutex
	saved     []entity.Notification
	failTimes int
}

func (s *memNotifications) Save(ctx context.Context, n *entity.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failTimes > 0 {
		s.failTimes--
		return errors.New("db down")
	}
	s.saved = append(s.saved, *n)
	return nil
}

type memMailer struct {
	mu   sync.Mutex
	sent []entity.Notification
}

func (m *memMailer) Enabled() bool { return true }
func (m *memMailer) Send(ctx context.Context, n *entity.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, *n)
	return nil
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Notification.QueueKey = "test:notifications"
	cfg.Notification.MaxRetries = 2
	return cfg
}

func TestDispatchThenHandle(t *testing.T) {
	cfg := testConfig()
	queue := newMemQueue()
	store := &memNotifications{}
	mailer := &memMailer{}
	m := metrics.New(prometheus.NewRegistry())
	logger := zaptest.NewLogger(t)

	d := NewQueueDispatcher(cfg, queue, logger)
	w := NewWorker(cfg, queue, store, mailer, m, logger)

	n := &entity.Notification{
		ID:             "n1",
		RecipientID:    "u1",
		RecipientEmail: "u1@example.com",
		Type:           entity.NotificationSignatureRequested,
		Title:          "Signature requested",
		RelatedID:      "req-1",
	}
	require.NoError(t, d.Dispatch(context.Background(), n))

	raw, err := queue.PopBlocking(context.Background(), cfg.Notification.QueueKey, time.Second)
	require.NoError(t, err)
	w.Handle(context.Background(), raw)

	require.Len(t, store.saved, 1)
	assert.Equal(t, "req-1", store.saved[0].RelatedID)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, 1.0, counterValue(t, m.NotificationsHandled.WithLabelValues("delivered")))
}

func TestHandleRetriesTransientFailure(t *testing.T) {
	cfg := testConfig()
	store := &memNotifications{failTimes: 1}
	m := metrics.New(prometheus.NewRegistry())
	w := NewWorker(cfg, newMemQueue(), store, nil, m, zaptest.NewLogger(t))

	raw, _ := json.Marshal(entity.Notification{ID: "n1", RecipientID: "u1"})
	w.Handle(context.Background(), string(raw))

	assert.Len(t, store.saved, 1)
	assert.Equal(t, 1.0, counterValue(t, m.NotificationsHandled.WithLabelValues("delivered")))
}

func TestHandleMalformedPayload(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	store := &memNotifications{}
	w := NewWorker(testConfig(), newMemQueue(), store, nil, m, zaptest.NewLogger(t))

	w.Handle(context.Background(), "{broken")

	assert.Empty(t, store.saved)
	assert.Equal(t, 1.0, counterValue(t, m.NotificationsHandled.WithLabelValues("malformed")))
}

func TestWorkerStartStop(t *testing.T) {
	cfg := testConfig()
	queue := newMemQueue()
	store := &memNotifications{}
	w := NewWorker(cfg, queue, store, nil, nil, zaptest.NewLogger(t))

	raw, _ := json.Marshal(entity.Notification{ID: "n1", RecipientID: "u1"})
	require.NoError(t, queue.Push(context.Background(), cfg.Notification.QueueKey, raw))

	w.Start()
	assert.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.saved) == 1
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, w.Stop(ctx))
}

func TestRelayClientSend(t *testing.T) {
	var got relayMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := "Basic " + base64.StdEncoding.EncodeToString([]byte("mailer:pw"))
		assert.Equal(t, want, r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Notification.EmailRelayURL = srv.URL
	cfg.Notification.EmailUser = "mailer"
	cfg.Notification.EmailPassword = "pw"
	c := NewRelayClient(cfg, zaptest.NewLogger(t))
	require.True(t, c.Enabled())

	err := c.Send(context.Background(), &entity.Notification{
		ID: "n1", RecipientEmail: "a@example.com", Title: "Signed", Message: "Done", Type: entity.NotificationSignatureCompleted,
	})
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", got.To)
	assert.Equal(t, "Signed", got.Subject)
}

func TestRelayClientRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Notification.EmailRelayURL = srv.URL
	c := NewRelayClient(cfg, zaptest.NewLogger(t))

	err := c.Send(context.Background(), &entity.Notification{ID: "n1", RecipientEmail: "a@example.com"})
	assert.ErrorContains(t, err, "status=500")
}
