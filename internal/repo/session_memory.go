package repo

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	errx "github.com/green-credit-copilot/server/internal/core/error"
	"github.com/green-credit-copilot/server/internal/model"
)

// MemorySessionRepository is the in-process SessionRepository used by tests
// and single-node development runs. Semantics mirror the Redis repository.
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*memorySession
}

type memorySession struct {
	meta        model.Session
	turns       []model.Turn
	titleLocked bool
}

func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{sessions: make(map[string]*memorySession)}
}

func notFound() error {
	return errx.New(nil, http.StatusNotFound, errx.RedisNotFoundMessage)
}

func (r *MemorySessionRepository) Create(_ context.Context, ownerID, title string) (*model.Session, error) {
	if title == "" {
		title = model.DefaultSessionTitle
	}
	now := time.Now().UTC()
	s := model.Session{
		ID:        uuid.NewString(),
		Title:     title,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = &memorySession{meta: s}
	out := s
	return &out, nil
}

func (r *MemorySessionRepository) Get(_ context.Context, sessionID string) (*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ms, ok := r.sessions[sessionID]
	if !ok {
		return nil, notFound()
	}
	out := ms.meta
	out.Turns = append([]model.Turn(nil), ms.turns...)
	return &out, nil
}

func (r *MemorySessionRepository) List(_ context.Context, ownerID string) ([]*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.Session, 0)
	for _, ms := range r.sessions {
		if ms.meta.OwnerID != ownerID {
			continue
		}
		s := ms.meta
		out = append(out, &s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *MemorySessionRepository) Delete(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
	return nil
}

func (r *MemorySessionRepository) Rename(_ context.Context, sessionID, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ms, ok := r.sessions[sessionID]
	if !ok {
		return notFound()
	}
	ms.meta.Title = title
	ms.titleLocked = true
	ms.meta.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemorySessionRepository) AppendTurn(_ context.Context, sessionID string, turn model.Turn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	ms, ok := r.sessions[sessionID]
	if !ok {
		return notFound()
	}
	ms.turns = append(ms.turns, turn)
	ms.meta.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemorySessionRepository) RecentTurns(_ context.Context, sessionID string, limit int) ([]model.Turn, error) {
	if limit <= 0 {
		return []model.Turn{}, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	ms, ok := r.sessions[sessionID]
	if !ok {
		return []model.Turn{}, nil
	}
	turns := ms.turns
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return append([]model.Turn(nil), turns...), nil
}

func (r *MemorySessionRepository) TurnCount(_ context.Context, sessionID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ms, ok := r.sessions[sessionID]
	if !ok {
		return 0, nil
	}
	return len(ms.turns), nil
}

func (r *MemorySessionRepository) SetTitleOnce(_ context.Context, sessionID, title string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ms, ok := r.sessions[sessionID]
	if !ok {
		return false, notFound()
	}
	if ms.titleLocked {
		return false, nil
	}
	ms.titleLocked = true
	ms.meta.Title = title
	ms.meta.UpdatedAt = time.Now().UTC()
	return true, nil
}

var _ model.SessionRepository = (*MemorySessionRepository)(nil)
