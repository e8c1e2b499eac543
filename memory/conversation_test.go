package memory

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddTurnPreservesOrder(t *testing.T) {
	m := NewConversationMemory()

	require.NoError(t, m.AddTurn("first question", "first answer"))
	require.NoError(t, m.AddTurn("second question", "second answer"))

	recent := m.GetRecent(10)
	require.Len(t, recent, 2)
	assert.Equal(t, "first question", recent[0].User)
	assert.Equal(t, "second answer", recent[1].Assistant)
	assert.False(t, recent[0].Timestamp.IsZero())
}

func TestStatisticsDerived(t *testing.T) {
	m := NewConversationMemory()
	require.NoError(t, m.AddTurn("q1", "a1"))
	require.NoError(t, m.AddTurn("q2", "a2"))
	require.NoError(t, m.AddTurn("q3", "a3"))

	stats := m.GetStatistics()
	assert.Equal(t, 6, stats.TotalMessages)
	assert.Equal(t, 3, stats.TotalTurns)
	assert.Equal(t, 3, stats.ActiveTurns)
	assert.Equal(t, 0, stats.SummaryCount)
	assert.Equal(t, 1, stats.SessionCount)

	m.AddSummary("the user asked three questions")
	stats = m.GetStatistics()
	assert.Equal(t, 1, stats.SummaryCount)
	assert.Equal(t, 0, stats.ActiveTurns)
}

func TestClearResetsStats(t *testing.T) {
	m := NewConversationMemory()
	require.NoError(t, m.AddTurn("q", "a"))
	m.AddSummary("s")

	m.Clear()

	stats := m.GetStatistics()
	assert.Equal(t, Stats{SessionCount: 1}, stats)
	assert.Empty(t, m.GetRecent(10))
}

func TestGetRecentBounds(t *testing.T) {
	m := NewConversationMemory()
	for i := 0; i < 5; i++ {
		require.NoError(t, m.AddTurn(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i)))
	}

	assert.Nil(t, m.GetRecent(0))
	assert.Nil(t, m.GetRecent(-1))
	assert.Len(t, m.GetRecent(2), 2)
	assert.Len(t, m.GetRecent(100), 5)

	last := m.GetRecent(1)
	assert.Equal(t, "q4", last[0].User)
}

func TestTurnRetentionLimit(t *testing.T) {
	m, err := NewConversationMemoryWithMax(3)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.NoError(t, m.AddTurn(fmt.Sprintf("q%d", i), "a"))
	}

	recent := m.GetRecent(10)
	require.Len(t, recent, 3)
	assert.Equal(t, "q7", recent[0].User)
}

func TestInvalidConstructionAndMessages(t *testing.T) {
	_, err := NewConversationMemoryWithMax(0)
	assert.Error(t, err)

	m := NewConversationMemory()
	assert.Error(t, m.AddTurn(strings.Repeat("x", MaxMessageLength+1), "a"))
}

func TestAddTurnAtomicWithStats(t *testing.T) {
	m := NewConversationMemory()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.AddTurn("q", "a")
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			stats := m.GetStatistics()
			// A turn is two messages; never observe a half-written turn.
			assert.Equal(t, stats.TotalTurns*2, stats.TotalMessages)
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, m.GetStatistics().TotalTurns)
}

func TestKeyValueMemory(t *testing.T) {
	kv := NewKeyValue()

	assert.Equal(t, Missing, kv.Recall("color"))

	kv.Remember("color", "blue")
	kv.Remember("color", "green") // last write wins
	assert.Equal(t, "green", kv.Recall("color"))
	assert.Equal(t, 1, kv.Len())

	kv.Clear()
	assert.Equal(t, Missing, kv.Recall("color"))
}
