// Package inbox aggregates conversation previews from a user's registered
// messaging backends into one unified view, refreshed on a fixed interval.
package inbox

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"sms-console/internal/backendapi"
	"sms-console/internal/models"
)

// Notifier pushes refreshed state to connected console clients. The ws hub
// implements it; a nil notifier disables push.
type Notifier interface {
	NotifyInbox(userID string, previews interface{})
	NotifyConversation(userID string, messages interface{})
}

// TaggedPreview is a backend preview annotated with its origin, so the
// console can route conversation and send actions back to the right backend.
type TaggedPreview struct {
	backendapi.Preview
	BackendIndex int    `json:"backendIndex"`
	BackendURL   string `json:"backendUrl"`
}

type Service struct {
	client   *backendapi.Client
	notifier Notifier
	interval time.Duration

	mu       sync.Mutex
	sessions map[string]*session
}

// session is the in-memory inbox state of one user. It is rebuilt wholesale
// every poll cycle and discarded when the user closes the screen.
type session struct {
	userID   string
	backends []models.Backend
	cancel   context.CancelFunc

	mu           sync.Mutex
	snapshot     []TaggedPreview
	conversation []backendapi.ConversationMessage
	convGen      int64
	convCancel   context.CancelFunc
}

func NewService(client *backendapi.Client, notifier Notifier, interval time.Duration) *Service {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Service{
		client:   client,
		notifier: notifier,
		interval: interval,
		sessions: make(map[string]*session),
	}
}

// Open starts (or restarts) the preview poll loop for a user against the given
// backend list. The first cycle runs synchronously so the caller gets a
// populated snapshot when the backends are reachable.
func (s *Service) Open(userID string, backends []models.Backend) []TaggedPreview {
	s.mu.Lock()
	if existing, ok := s.sessions[userID]; ok {
		existing.close()
	}
	ctx, cancel := context.WithCancel(context.Background())
	sess := &session{
		userID:   userID,
		backends: backends,
		cancel:   cancel,
	}
	s.sessions[userID] = sess
	s.mu.Unlock()

	s.refreshPreviews(ctx, sess)
	go s.previewLoop(ctx, sess)

	return sess.Snapshot()
}

// Close tears down the user's poll loops and discards all inbox state.
func (s *Service) Close(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[userID]; ok {
		sess.close()
		delete(s.sessions, userID)
	}
}

// Snapshot returns the last good combined preview list, or an empty list if
// the user has no open inbox.
func (s *Service) Snapshot(userID string) []TaggedPreview {
	if sess := s.session(userID); sess != nil {
		return sess.Snapshot()
	}
	return []TaggedPreview{}
}

// Refresh runs one aggregation cycle immediately, outside the timer, and
// returns the resulting snapshot. On a failed cycle the previous snapshot is
// returned unchanged.
func (s *Service) Refresh(userID string) []TaggedPreview {
	sess := s.session(userID)
	if sess == nil {
		return []TaggedPreview{}
	}
	s.refreshPreviews(context.Background(), sess)
	return sess.Snapshot()
}

// Conversation returns the currently loaded conversation for the user's
// selected thread.
func (s *Service) Conversation(userID string) []backendapi.ConversationMessage {
	sess := s.session(userID)
	if sess == nil {
		return []backendapi.ConversationMessage{}
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.conversation == nil {
		return []backendapi.ConversationMessage{}
	}
	return sess.conversation
}

// Select switches the open conversation to one backend + phone pair. Prior
// conversation state is discarded immediately and the poll timer restarts
// against the new target. Each selection advances a generation counter; a
// late response for a superseded selection is dropped.
func (s *Service) Select(userID string, backendIndex int, phone string) ([]backendapi.ConversationMessage, error) {
	sess := s.session(userID)
	if sess == nil {
		return nil, fmt.Errorf("inbox is not open")
	}
	if backendIndex < 0 || backendIndex >= len(sess.backends) {
		return nil, fmt.Errorf("invalid backend index %d", backendIndex)
	}

	sess.mu.Lock()
	if sess.convCancel != nil {
		sess.convCancel()
	}
	sess.convGen++
	gen := sess.convGen
	sess.conversation = nil
	ctx, cancel := context.WithCancel(context.Background())
	sess.convCancel = cancel
	sess.mu.Unlock()

	s.refreshConversation(ctx, sess, gen, backendIndex, phone)
	go s.conversationLoop(ctx, sess, gen, backendIndex, phone)

	return s.Conversation(userID), nil
}

// Deselect closes the open conversation without tearing down the inbox.
func (s *Service) Deselect(userID string) {
	sess := s.session(userID)
	if sess == nil {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.convCancel != nil {
		sess.convCancel()
		sess.convCancel = nil
	}
	sess.convGen++
	sess.conversation = nil
}

// Send posts a message through the chosen backend and returns its raw
// response text. The sent message shows up in the conversation only once the
// next poll cycle re-fetches it.
func (s *Service) Send(ctx context.Context, userID string, backendIndex int, phone, text string) (string, error) {
	sess := s.session(userID)
	if sess == nil {
		return "", fmt.Errorf("inbox is not open")
	}
	if backendIndex < 0 || backendIndex >= len(sess.backends) {
		return "", fmt.Errorf("invalid backend index %d", backendIndex)
	}
	return s.client.SendMessage(ctx, sess.backends[backendIndex].BaseURL, phone, text)
}

func (s *Service) session(userID string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[userID]
}

func (s *Service) previewLoop(ctx context.Context, sess *session) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshPreviews(ctx, sess)
		}
	}
}

// refreshPreviews runs one aggregation cycle. Any backend failure aborts the
// whole cycle and the previous snapshot stays in place.
func (s *Service) refreshPreviews(ctx context.Context, sess *session) {
	combined, err := s.fetchCycle(ctx, sess.backends)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("Inbox error for user %s: %v", sess.userID, err)
		}
		return
	}

	sess.mu.Lock()
	sess.snapshot = combined
	sess.mu.Unlock()

	if s.notifier != nil {
		s.notifier.NotifyInbox(sess.userID, combined)
	}
}

// fetchCycle queries every backend's /messages in parallel and concatenates
// the results in backend-list order, tagging each preview with its origin.
// Order within a backend is kept as returned; no re-sort, no de-duplication.
func (s *Service) fetchCycle(ctx context.Context, backends []models.Backend) ([]TaggedPreview, error) {
	results := make([][]TaggedPreview, len(backends))
	errs := make([]error, len(backends))

	var wg sync.WaitGroup
	for i, b := range backends {
		wg.Add(1)
		go func(index int, backend models.Backend) {
			defer wg.Done()
			previews, err := s.client.GetMessages(ctx, backend.BaseURL)
			if err != nil {
				errs[index] = err
				return
			}
			tagged := make([]TaggedPreview, 0, len(previews))
			for _, p := range previews {
				tagged = append(tagged, TaggedPreview{
					Preview:      p,
					BackendIndex: index,
					BackendURL:   backend.BaseURL,
				})
			}
			results[index] = tagged
		}(i, b)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	combined := make([]TaggedPreview, 0)
	for _, r := range results {
		combined = append(combined, r...)
	}
	return combined, nil
}

func (s *Service) conversationLoop(ctx context.Context, sess *session, gen int64, backendIndex int, phone string) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshConversation(ctx, sess, gen, backendIndex, phone)
		}
	}
}

func (s *Service) refreshConversation(ctx context.Context, sess *session, gen int64, backendIndex int, phone string) {
	msgs, err := s.client.GetConversation(ctx, sess.backends[backendIndex].BaseURL, phone)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("Conversation error for user %s: %v", sess.userID, err)
		}
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.convGen != gen {
		// The selection changed while this request was in flight.
		return
	}
	sess.conversation = msgs
	// Pushed under the lock so the event stream cannot reorder a superseded
	// thread after a newer selection's push.
	if s.notifier != nil {
		s.notifier.NotifyConversation(sess.userID, msgs)
	}
}

func (sess *session) Snapshot() []TaggedPreview {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.snapshot == nil {
		return []TaggedPreview{}
	}
	return sess.snapshot
}

func (sess *session) close() {
	sess.cancel()
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.convCancel != nil {
		sess.convCancel()
		sess.convCancel = nil
	}
}
