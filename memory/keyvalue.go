package memory

import "sync"

// ============================================================================
// KEY-VALUE MEMORY
// ============================================================================

// Missing is the sentinel returned by Recall for absent keys.
const Missing = "<no memory>"

// KeyValue is the agent's simple last-write-wins memory.
type KeyValue struct {
	mu    sync.RWMutex
	items map[string]any
}

// NewKeyValue creates an empty key-value memory.
func NewKeyValue() *KeyValue {
	return &KeyValue{items: make(map[string]any)}
}

// Remember stores value under key, replacing any prior value.
func (kv *KeyValue) Remember(key string, value any) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.items[key] = value
}

// Recall returns the value stored under key, or the Missing sentinel.
func (kv *KeyValue) Recall(key string) any {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	if v, ok := kv.items[key]; ok {
		return v
	}
	return Missing
}

// Len returns the number of stored keys.
func (kv *KeyValue) Len() int {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	return len(kv.items)
}

// Clear removes all keys.
func (kv *KeyValue) Clear() {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.items = make(map[string]any)
}
