// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/privgpt-studio/privgpt-tui/internal/api"
	"github.com/privgpt-studio/privgpt-tui/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrDraftSession marks operations that need a remote counterpart the
	// draft does not have. Callers treat it as a no-op, not a failure.
	ErrDraftSession = errors.New("draft session exists only locally")

	// ErrSessionNotFound indicates the registry has no session with that ID.
	ErrSessionNotFound = errors.New("session not in registry")
)

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// Remote is the backend surface the registry mutates through.
// *api.Client satisfies it.
type Remote interface {
	RenameSession(ctx context.Context, sessionID, newName string) error
	DeleteSession(ctx context.Context, sessionID string) error
}

// Store persists the session ID list across restarts.
// *storage.SessionStore satisfies it.
type Store interface {
	Add(ctx context.Context, id string) error
	Remove(ctx context.Context, id string) error
}

// =============================================================================
// REGISTRY
// =============================================================================

// Registry is the single owner of the session list and the active session.
type Registry struct {
	mu       sync.Mutex
	remote   Remote
	store    Store
	sessions []*model.ChatSession
	activeID string
}

// New creates a registry seeded with an active draft session.
func New(remote Remote, store Store) *Registry {
	return &Registry{
		remote:   remote,
		store:    store,
		sessions: []*model.ChatSession{model.NewDraftSession()},
		activeID: model.DraftSessionID,
	}
}

// List returns the sessions in display order, draft first. The returned
// entries are copies.
func (r *Registry) List() []model.ChatSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.ChatSession, len(r.sessions))
	for i, s := range r.sessions {
		out[i] = *s
	}
	return out
}

// ActiveID returns the ID of the session the transcript belongs to.
func (r *Registry) ActiveID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeID
}

// ActiveIsDraft reports whether the transcript belongs to the draft.
func (r *Registry) ActiveIsDraft() bool {
	return r.ActiveID() == model.DraftSessionID
}

// HasDraft reports whether a draft session is in the list.
func (r *Registry) HasDraft() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.draftIndexLocked() >= 0
}

// CanCreateDraft reports whether NewDraft would create one. There is never
// more than one draft.
func (r *Registry) CanCreateDraft() bool {
	return !r.HasDraft()
}

// NewDraft creates and activates a fresh draft session. When a draft
// already exists this is a no-op and returns false.
func (r *Registry) NewDraft() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.draftIndexLocked() >= 0 {
		return false
	}
	r.sessions = append([]*model.ChatSession{model.NewDraftSession()}, r.sessions...)
	r.activeID = model.DraftSessionID
	return true
}

// SetActive switches the active session. Switching from the draft to a
// confirmed session drops the draft from the list; its transcript was never
// persisted anywhere, so there is nothing to merge.
func (r *Registry) SetActive(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexLocked(id) < 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if r.activeID == model.DraftSessionID && id != model.DraftSessionID {
		r.removeLocked(model.DraftSessionID)
	}
	r.activeID = id
	return nil
}

// Reconcile replaces the draft with the server-assigned session ID after a
// completed exchange. The new ID becomes active and is persisted to the
// local store; it gets no list entry here, the next history refresh brings
// the full document. Calling again with the same ID is a no-op, so replayed
// completion events are harmless.
func (r *Registry) Reconcile(ctx context.Context, newID string) error {
	if newID == "" || newID == model.DraftSessionID {
		return nil
	}

	r.mu.Lock()
	if r.activeID == newID && r.draftIndexLocked() < 0 {
		r.mu.Unlock()
		return nil
	}
	r.removeLocked(model.DraftSessionID)
	r.activeID = newID
	r.mu.Unlock()

	if err := r.store.Add(ctx, newID); err != nil {
		return fmt.Errorf("failed to persist session id: %w", err)
	}
	return nil
}

// SetRemote replaces the confirmed sessions with documents from a history
// fetch. A present draft stays first; the active session is kept if it
// survived, otherwise the first entry becomes active.
func (r *Registry) SetRemote(docs []api.SessionDoc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var next []*model.ChatSession
	if r.draftIndexLocked() >= 0 {
		next = append(next, model.NewDraftSession())
	}
	for _, doc := range docs {
		next = append(next, SessionFromDoc(doc))
	}
	r.sessions = next

	if r.indexLocked(r.activeID) < 0 {
		if len(r.sessions) > 0 {
			r.activeID = r.sessions[0].ID
		} else {
			r.sessions = []*model.ChatSession{model.NewDraftSession()}
			r.activeID = model.DraftSessionID
		}
	}
}

// Rename changes a session's name, remote first. The draft cannot be
// renamed; it has no remote counterpart.
func (r *Registry) Rename(ctx context.Context, id, newName string) error {
	if id == model.DraftSessionID {
		return ErrDraftSession
	}

	r.mu.Lock()
	if r.indexLocked(id) < 0 {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	r.mu.Unlock()

	if err := r.remote.RenameSession(ctx, id, newName); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.indexLocked(id); i >= 0 {
		r.sessions[i].Name = newName
	}
	return nil
}

// Delete removes a session, remote first, and returns the ID that should
// become active. Deleting the active session selects the first remaining
// session; with nothing left a fresh draft takes over. The draft itself
// cannot be deleted.
func (r *Registry) Delete(ctx context.Context, id string) (string, error) {
	if id == model.DraftSessionID {
		return "", ErrDraftSession
	}

	r.mu.Lock()
	if r.indexLocked(id) < 0 {
		r.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	r.mu.Unlock()

	if err := r.remote.DeleteSession(ctx, id); err != nil {
		return "", err
	}
	if err := r.store.Remove(ctx, id); err != nil {
		return "", fmt.Errorf("failed to drop persisted session id: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(id)

	if r.activeID != id {
		return r.activeID, nil
	}
	if len(r.sessions) > 0 {
		r.activeID = r.sessions[0].ID
	} else {
		r.sessions = []*model.ChatSession{model.NewDraftSession()}
		r.activeID = model.DraftSessionID
	}
	return r.activeID, nil
}

// SetLastMessage updates the sidebar preview for a session.
func (r *Registry) SetLastMessage(id, preview string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.indexLocked(id); i >= 0 {
		r.sessions[i].LastMessage = preview
	}
}

// =============================================================================
// INTERNAL
// =============================================================================

// indexLocked returns the position of the session with the given ID, or -1.
// Caller holds r.mu.
func (r *Registry) indexLocked(id string) int {
	for i, s := range r.sessions {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// draftIndexLocked returns the draft's position, or -1. Caller holds r.mu.
func (r *Registry) draftIndexLocked() int {
	return r.indexLocked(model.DraftSessionID)
}

// removeLocked drops the session with the given ID. Caller holds r.mu.
func (r *Registry) removeLocked(id string) {
	if i := r.indexLocked(id); i >= 0 {
		r.sessions = append(r.sessions[:i], r.sessions[i+1:]...)
	}
}
