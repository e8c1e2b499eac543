package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndGet(t *testing.T) {
	r := NewBaseRegistry[string]()

	require.NoError(t, r.Register("a", "alpha"))
	require.NoError(t, r.Register("b", "beta"))

	got, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, "alpha", got)

	_, ok = r.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, 2, r.Count())
}

func TestRegisterValidation(t *testing.T) {
	r := NewBaseRegistry[int]()

	assert.Error(t, r.Register("", 1))
	require.NoError(t, r.Register("x", 1))
	assert.Error(t, r.Register("x", 2), "duplicate names are rejected")
}

func TestNamesSorted(t *testing.T) {
	r := NewBaseRegistry[int]()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, r.Register(name, 0))
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, r.Names())
}

func TestRemoveAndClear(t *testing.T) {
	r := NewBaseRegistry[int]()
	require.NoError(t, r.Register("x", 1))

	assert.Error(t, r.Remove("missing"))
	require.NoError(t, r.Remove("x"))
	assert.Equal(t, 0, r.Count())

	require.NoError(t, r.Register("y", 2))
	r.Clear()
	assert.Equal(t, 0, r.Count())
}

func TestConcurrentAccess(t *testing.T) {
	r := NewBaseRegistry[int]()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = r.Register(fmt.Sprintf("item-%d", i), i)
			r.List()
			r.Count()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, r.Count())
}
