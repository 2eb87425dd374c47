// Package store holds the session-scoped in-memory context that the chat
// pipeline operates on: the matrix snapshot pushed by the caller and the
// per-session conversation log. The store is an explicit object threaded
// through the services rather than a process-wide singleton, so concurrent
// sessions never observe each other's state.
package store

import (
	"sync"

	"matrixchat/internal/model"
)

// maxStoredMessages bounds the per-session conversation log. The read path
// truncates anyway; the cap keeps long-lived sessions from growing without
// bound.
const maxStoredMessages = 200

// Session is the context for one logical chat session. A SyncContext call
// replaces the matrix snapshot wholesale (last sync wins); the conversation
// log is append-only.
type Session struct {
	mu        sync.Mutex
	documents []model.Document
	docsByID  map[string]model.Document
	metrics   []model.Metric
	cells     map[model.CellKey]model.Cell
	history   []model.ChatMessage
}

// NewSession creates an empty session context.
func NewSession() *Session {
	return &Session{
		docsByID: make(map[string]model.Document),
		cells:    make(map[model.CellKey]model.Cell),
	}
}

// SyncContext replaces the session's documents, metrics and cells with the
// given snapshot. Wire-format cell keys that reference no known metric are
// dropped silently.
func (s *Session) SyncContext(mc model.MatrixContext) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.documents = make([]model.Document, 0, len(mc.Documents))
	s.docsByID = make(map[string]model.Document, len(mc.Documents))
	for _, doc := range mc.Documents {
		s.documents = append(s.documents, doc)
		s.docsByID[doc.ID] = doc
	}

	s.metrics = make([]model.Metric, 0, len(mc.Metrics))
	s.metrics = append(s.metrics, mc.Metrics...)

	s.cells = model.DecodeCells(mc.Cells, mc.Metrics)
}

// Documents returns the synced documents in sync order.
func (s *Session) Documents() []model.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Document, len(s.documents))
	copy(out, s.documents)
	return out
}

// Document looks up a single document by id.
func (s *Session) Document(id string) (model.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docsByID[id]
	return doc, ok
}

// Metrics returns the synced metrics in sync order.
func (s *Session) Metrics() []model.Metric {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Metric, len(s.metrics))
	copy(out, s.metrics)
	return out
}

// Cells returns a copy of the cell map keyed by composite key.
func (s *Session) Cells() map[model.CellKey]model.Cell {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[model.CellKey]model.Cell, len(s.cells))
	for k, v := range s.cells {
		out[k] = v
	}
	return out
}

// Cell looks up one cell by document and metric id.
func (s *Session) Cell(docID, metricID string) (model.Cell, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cell, ok := s.cells[model.CellKey{DocID: docID, MetricID: metricID}]
	return cell, ok
}

// AppendMessage appends a message to the conversation log, evicting the
// oldest entries once the stored cap is reached.
func (s *Session) AppendMessage(msg model.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, msg)
	if len(s.history) > maxStoredMessages {
		s.history = s.history[len(s.history)-maxStoredMessages:]
	}
}

// History returns up to limit of the most recent messages, oldest first.
// A non-positive limit returns the whole stored log.
func (s *Session) History(limit int) []model.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := 0
	if limit > 0 && len(s.history) > limit {
		start = len(s.history) - limit
	}
	out := make([]model.ChatMessage, len(s.history)-start)
	copy(out, s.history[start:])
	return out
}

// ClearHistory drops the conversation log, keeping the matrix snapshot.
func (s *Session) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
}

// Manager hands out session contexts keyed by session id, creating them on
// first use.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates an empty session manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Session returns the context for the given session id, creating it if
// this is the first request for that session.
func (m *Manager) Session(sessionID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sessionID]; ok {
		return s
	}
	s := NewSession()
	m.sessions[sessionID] = s
	return s
}

// Remove tears down a session context.
func (m *Manager) Remove(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}
