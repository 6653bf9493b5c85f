package session

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Registry tracks the live sessions of this process, one per call ID. It
// is the single authority on whether a call is active: registration must
// succeed before any session resources are acquired.
type Registry struct {
	log logrus.FieldLogger

	mu       sync.Mutex
	sessions map[string]Session
}

func NewRegistry(log logrus.FieldLogger) *Registry {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Registry{
		log:      log,
		sessions: make(map[string]Session),
	}
}

// Register claims the call ID for s. Fails with ErrCallActive while a
// previous session for the same call is still registered.
func (r *Registry) Register(callID string, s Session) error {
	if strings.TrimSpace(callID) == "" {
		return errors.New("call id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[callID]; ok {
		return ErrCallActive
	}
	r.sessions[callID] = s
	return nil
}

// Unregister releases the call ID. Safe to call for unknown IDs.
func (r *Registry) Unregister(callID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, callID)
}

// release removes callID only while it still maps to s. A finished session
// whose call ID was already reclaimed by a newer one must not evict the
// replacement.
func (r *Registry) release(callID string, s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[callID]; ok && cur == s {
		delete(r.sessions, callID)
	}
}

func (r *Registry) IsActive(callID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[callID]
	return ok
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Active returns the registered call IDs, sorted.
func (r *Registry) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Statuses returns a snapshot of every registered session, ordered by call
// ID.
func (r *Registry) Statuses() []Status {
	r.mu.Lock()
	sessions := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	statuses := make([]Status, 0, len(sessions))
	for _, s := range sessions {
		statuses = append(statuses, s.Status())
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].CallID < statuses[j].CallID })
	return statuses
}

// ShutdownOne cancels the session for callID and waits for its teardown to
// finish or ctx to expire.
func (r *Registry) ShutdownOne(ctx context.Context, callID string) error {
	r.mu.Lock()
	s, ok := r.sessions[callID]
	r.mu.Unlock()

	if !ok {
		return ErrUnknownCall
	}

	s.Cancel()
	select {
	case <-s.Done():
		r.release(callID, s)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ShutdownAll cancels every registered session and waits for each to
// finish or ctx to expire. Returns the number of sessions that were
// cancelled; a session whose teardown outlives ctx is still counted, it is
// only logged.
func (r *Registry) ShutdownAll(ctx context.Context) int {
	r.mu.Lock()
	snapshot := make(map[string]Session, len(r.sessions))
	for id, s := range r.sessions {
		snapshot[id] = s
	}
	r.mu.Unlock()

	for _, s := range snapshot {
		s.Cancel()
	}

	var wg sync.WaitGroup
	for id, s := range snapshot {
		wg.Add(1)
		go func(id string, s Session) {
			defer wg.Done()
			select {
			case <-s.Done():
				r.release(id, s)
			case <-ctx.Done():
				r.log.WithField("call_id", id).Warn("session teardown did not finish before deadline")
			}
		}(id, s)
	}
	wg.Wait()

	return len(snapshot)
}
