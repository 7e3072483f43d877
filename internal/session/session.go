// Package session drives chunk processing at live cadence and manages
// the lifecycle of concurrent scoring sessions.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
)

// Session tracks one paced run over a media source. The runner is the
// only writer; the mutex exists for status readers.
type Session struct {
	mu             sync.Mutex
	id             string
	sourceID       string
	chunkDuration  float64
	nextChunkIndex int
	active         bool
}

func NewSession(sourceID string, chunkDuration float64) *Session {
	return &Session{
		id:            newSessionID(),
		sourceID:      sourceID,
		chunkDuration: chunkDuration,
		active:        true,
	}
}

func (s *Session) advance() {
	s.mu.Lock()
	s.nextChunkIndex++
	s.mu.Unlock()
}

func (s *Session) deactivate() {
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()
}

// View is a read-only snapshot of a session for status reporting.
type View struct {
	ID             string  `json:"id"`
	SourceID       string  `json:"source_id"`
	ChunkDuration  float64 `json:"chunk_duration"`
	NextChunkIndex int     `json:"next_chunk_index"`
	Active         bool    `json:"active"`
}

func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		ID:             s.id,
		SourceID:       s.sourceID,
		ChunkDuration:  s.chunkDuration,
		NextChunkIndex: s.nextChunkIndex,
		Active:         s.active,
	}
}

func newSessionID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}
