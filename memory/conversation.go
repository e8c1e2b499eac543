// Package memory provides per-agent conversation memory and key-value
// memory. Neither store is shared across agents.
package memory

import (
	"sync"
	"time"

	"github.com/danaruntime/dana/agenterr"
)

// ============================================================================
// CONVERSATION MEMORY
// ============================================================================

const (
	// MaxMessageLength bounds a single message.
	MaxMessageLength = 100000

	// DefaultMaxTurns is the default turn retention limit.
	DefaultMaxTurns = 1000
)

// Turn is a single (user, assistant) exchange.
type Turn struct {
	User      string    `json:"user"`
	Assistant string    `json:"assistant"`
	Timestamp time.Time `json:"timestamp"`
}

// Stats are derived conversation statistics. They are computed on read and
// never written directly.
type Stats struct {
	TotalMessages int `json:"total_messages"`
	TotalTurns    int `json:"total_turns"`
	ActiveTurns   int `json:"active_turns"`
	SummaryCount  int `json:"summary_count"`
	SessionCount  int `json:"session_count"`
}

// ConversationMemory is an append-only, ordered turn log with stats.
//
// AddTurn and Clear serialize; readers of GetStatistics observe either the
// state before or after a concurrent AddTurn, never a partial turn.
type ConversationMemory struct {
	mu         sync.RWMutex
	turns      []Turn
	summaries  []string
	summarized int // turns folded into summaries; active = len(turns) - summarized
	maxTurns   int
}

// NewConversationMemory creates an empty conversation memory.
func NewConversationMemory() *ConversationMemory {
	return &ConversationMemory{maxTurns: DefaultMaxTurns}
}

// NewConversationMemoryWithMax creates a conversation memory retaining at
// most maxTurns turns.
func NewConversationMemoryWithMax(maxTurns int) (*ConversationMemory, error) {
	if maxTurns <= 0 {
		return nil, agenterr.New(agenterr.KindInvalidArgument, "ConversationMemory",
			"NewConversationMemoryWithMax", "maxTurns must be positive")
	}
	return &ConversationMemory{maxTurns: maxTurns}, nil
}

// AddTurn appends a (user, assistant) exchange.
func (m *ConversationMemory) AddTurn(userMsg, assistantMsg string) error {
	if len(userMsg) > MaxMessageLength || len(assistantMsg) > MaxMessageLength {
		return agenterr.New(agenterr.KindInvalidArgument, "ConversationMemory",
			"AddTurn", "message exceeds maximum length")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.turns = append(m.turns, Turn{
		User:      userMsg,
		Assistant: assistantMsg,
		Timestamp: time.Now(),
	})

	// Retention: drop oldest turns beyond the limit.
	if len(m.turns) > m.maxTurns {
		overflow := len(m.turns) - m.maxTurns
		m.turns = m.turns[overflow:]
		if m.summarized > len(m.turns) {
			m.summarized = len(m.turns)
		}
	}
	return nil
}

// AddSummary records a summary covering the currently active turns.
func (m *ConversationMemory) AddSummary(summary string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries = append(m.summaries, summary)
	m.summarized = len(m.turns)
}

// GetRecent returns the last n turns in order. n <= 0 returns nothing.
func (m *ConversationMemory) GetRecent(n int) []Turn {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if n <= 0 {
		return nil
	}
	if n > len(m.turns) {
		n = len(m.turns)
	}
	out := make([]Turn, n)
	copy(out, m.turns[len(m.turns)-n:])
	return out
}

// GetStatistics derives conversation statistics.
func (m *ConversationMemory) GetStatistics() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Stats{
		TotalMessages: len(m.turns) * 2,
		TotalTurns:    len(m.turns),
		ActiveTurns:   len(m.turns) - m.summarized,
		SummaryCount:  len(m.summaries),
		SessionCount:  1,
	}
}

// Clear empties storage and resets statistics.
func (m *ConversationMemory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = nil
	m.summaries = nil
	m.summarized = 0
}
