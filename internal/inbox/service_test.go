package inbox

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"sms-console/internal/backendapi"
	"sms-console/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend simulates one externally hosted messaging backend.
type fakeBackend struct {
	mu            sync.Mutex
	previews      []backendapi.Preview
	conversations map[string][]backendapi.ConversationMessage
	convDelay     map[string]time.Duration
	fail          bool
	server        *httptest.Server
}

func newFakeBackend(previews ...backendapi.Preview) *fakeBackend {
	fb := &fakeBackend{
		previews:      previews,
		conversations: make(map[string][]backendapi.ConversationMessage),
		convDelay:     make(map[string]time.Duration),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/messages", func(w http.ResponseWriter, r *http.Request) {
		fb.mu.Lock()
		fail := fb.fail
		previews := fb.previews
		fb.mu.Unlock()
		if fail {
			http.Error(w, "backend down", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(previews)
	})
	mux.HandleFunc("/conversation", func(w http.ResponseWriter, r *http.Request) {
		phone := r.URL.Query().Get("phone")
		fb.mu.Lock()
		delay := fb.convDelay[phone]
		msgs := fb.conversations[phone]
		fb.mu.Unlock()
		if delay > 0 {
			time.Sleep(delay)
		}
		json.NewEncoder(w).Encode(msgs)
	})
	mux.HandleFunc("/send-message", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Message queued!"))
	})
	fb.server = httptest.NewServer(mux)
	return fb
}

func (fb *fakeBackend) setPreviews(previews []backendapi.Preview) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.previews = previews
}

func (fb *fakeBackend) setFail(fail bool) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.fail = fail
}

func preview(phone, snippet string) backendapi.Preview {
	return backendapi.Preview{PhoneNumber: phone, Snippet: snippet}
}

// recordingNotifier captures conversation pushes in arrival order.
type recordingNotifier struct {
	mu            sync.Mutex
	conversations [][]backendapi.ConversationMessage
}

func (n *recordingNotifier) NotifyInbox(string, interface{}) {}

func (n *recordingNotifier) NotifyConversation(userID string, messages interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if msgs, ok := messages.([]backendapi.ConversationMessage); ok {
		n.conversations = append(n.conversations, msgs)
	}
}

func (n *recordingNotifier) pushed() [][]backendapi.ConversationMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([][]backendapi.ConversationMessage(nil), n.conversations...)
}

// newTestService uses an interval long enough that only explicit Refresh
// calls trigger cycles.
func newTestService() *Service {
	return NewService(backendapi.NewClient(), nil, time.Hour)
}

func backendsFor(fbs ...*fakeBackend) []models.Backend {
	backends := make([]models.Backend, 0, len(fbs))
	for i, fb := range fbs {
		backends = append(backends, models.Backend{ID: uint(i + 1), UserID: "user-1", BaseURL: fb.server.URL})
	}
	return backends
}

func TestOpenAggregatesInBackendOrder(t *testing.T) {
	a := newFakeBackend(preview("5551111", "first"), preview("5552222", "second"))
	b := newFakeBackend(preview("5553333", "third"))
	defer a.server.Close()
	defer b.server.Close()

	svc := newTestService()
	defer svc.Close("user-1")

	snapshot := svc.Open("user-1", backendsFor(a, b))
	require.Len(t, snapshot, 3)

	assert.Equal(t, "5551111", snapshot[0].PhoneNumber)
	assert.Equal(t, "5552222", snapshot[1].PhoneNumber)
	assert.Equal(t, "5553333", snapshot[2].PhoneNumber)
	assert.Equal(t, 0, snapshot[0].BackendIndex)
	assert.Equal(t, 0, snapshot[1].BackendIndex)
	assert.Equal(t, 1, snapshot[2].BackendIndex)
	assert.Equal(t, a.server.URL, snapshot[0].BackendURL)
	assert.Equal(t, b.server.URL, snapshot[2].BackendURL)
}

func TestFailedCycleKeepsPreviousSnapshot(t *testing.T) {
	a := newFakeBackend(preview("5551111", "first"), preview("5552222", "second"))
	b := newFakeBackend(preview("5553333", "third"))
	defer a.server.Close()
	defer b.server.Close()

	svc := newTestService()
	defer svc.Close("user-1")

	snapshot := svc.Open("user-1", backendsFor(a, b))
	require.Len(t, snapshot, 3)

	// One failing backend blocks the whole cycle; A's fresh data must not
	// partially replace the combined list.
	a.setPreviews([]backendapi.Preview{preview("5559999", "new thread")})
	b.setFail(true)

	snapshot = svc.Refresh("user-1")
	require.Len(t, snapshot, 3)
	assert.Equal(t, "5551111", snapshot[0].PhoneNumber)

	b.setFail(false)
	snapshot = svc.Refresh("user-1")
	require.Len(t, snapshot, 2)
	assert.Equal(t, "5559999", snapshot[0].PhoneNumber)
	assert.Equal(t, "5553333", snapshot[1].PhoneNumber)
}

func TestSelectLoadsConversation(t *testing.T) {
	a := newFakeBackend(preview("5551111", "first"))
	defer a.server.Close()
	a.conversations["5551111"] = []backendapi.ConversationMessage{
		{From: "5551111", Time: "10:00", Text: "hello", Direction: "incoming"},
	}

	svc := newTestService()
	defer svc.Close("user-1")
	svc.Open("user-1", backendsFor(a))

	conv, err := svc.Select("user-1", 0, "5551111")
	require.NoError(t, err)
	require.Len(t, conv, 1)
	assert.Equal(t, "hello", conv[0].Text)
	assert.Equal(t, conv, svc.Conversation("user-1"))
}

func TestSelectValidation(t *testing.T) {
	a := newFakeBackend()
	defer a.server.Close()

	svc := newTestService()
	defer svc.Close("user-1")

	_, err := svc.Select("user-1", 0, "5551111")
	assert.Error(t, err, "inbox not open")

	svc.Open("user-1", backendsFor(a))
	_, err = svc.Select("user-1", 5, "5551111")
	assert.Error(t, err, "index out of range")
}

func TestSupersededConversationIsDiscarded(t *testing.T) {
	a := newFakeBackend(preview("slow", "s"), preview("fast", "f"))
	defer a.server.Close()
	a.conversations["slow"] = []backendapi.ConversationMessage{{From: "slow", Text: "stale reply"}}
	a.conversations["fast"] = []backendapi.ConversationMessage{{From: "fast", Text: "current reply"}}
	a.convDelay["slow"] = 300 * time.Millisecond

	notifier := &recordingNotifier{}
	svc := NewService(backendapi.NewClient(), notifier, time.Hour)
	defer svc.Close("user-1")
	svc.Open("user-1", backendsFor(a))

	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.Select("user-1", 0, "slow")
	}()
	time.Sleep(100 * time.Millisecond)

	conv, err := svc.Select("user-1", 0, "fast")
	require.NoError(t, err)
	require.Len(t, conv, 1)
	assert.Equal(t, "current reply", conv[0].Text)

	// The slow response resolves after the switch and must not clobber the
	// newer selection.
	<-done
	time.Sleep(300 * time.Millisecond)
	conv = svc.Conversation("user-1")
	require.Len(t, conv, 1)
	assert.Equal(t, "current reply", conv[0].Text)

	// The superseded thread never reaches the push stream either, and the
	// last push is the current selection.
	pushes := notifier.pushed()
	require.NotEmpty(t, pushes)
	for _, push := range pushes {
		for _, msg := range push {
			assert.NotEqual(t, "stale reply", msg.Text)
		}
	}
	last := pushes[len(pushes)-1]
	require.Len(t, last, 1)
	assert.Equal(t, "current reply", last[0].Text)
}

func TestDeselectClearsConversation(t *testing.T) {
	a := newFakeBackend(preview("5551111", "first"))
	defer a.server.Close()
	a.conversations["5551111"] = []backendapi.ConversationMessage{{From: "5551111", Text: "hello"}}

	svc := newTestService()
	defer svc.Close("user-1")
	svc.Open("user-1", backendsFor(a))

	_, err := svc.Select("user-1", 0, "5551111")
	require.NoError(t, err)
	require.NotEmpty(t, svc.Conversation("user-1"))

	svc.Deselect("user-1")
	assert.Empty(t, svc.Conversation("user-1"))
}

func TestSend(t *testing.T) {
	a := newFakeBackend()
	defer a.server.Close()

	svc := newTestService()
	defer svc.Close("user-1")
	svc.Open("user-1", backendsFor(a))

	status, err := svc.Send(context.Background(), "user-1", 0, "5551234", "hi")
	require.NoError(t, err)
	assert.Equal(t, "Message queued!", status)

	_, err = svc.Send(context.Background(), "user-1", 3, "5551234", "hi")
	assert.Error(t, err)
}

func TestCloseDiscardsState(t *testing.T) {
	a := newFakeBackend(preview("5551111", "first"))
	defer a.server.Close()

	svc := newTestService()
	snapshot := svc.Open("user-1", backendsFor(a))
	require.Len(t, snapshot, 1)

	svc.Close("user-1")
	assert.Empty(t, svc.Snapshot("user-1"))
	assert.Empty(t, svc.Refresh("user-1"))
}
