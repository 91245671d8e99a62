package cmap

// Traverse iterates every shard under its own lock, in shard order. The
// callback must not call back into the map — it runs while the shard
// lock is held (spec's "iteration callbacks must not call back into
// the manager" contract).
func (m *Map[K, V]) Traverse(fn func(key K, value V) bool) {
	m.Range(fn)
}

// TraverseCopy snapshots every shard (copying its entries out under
// lock) before invoking the callback, so the callback is free to
// re-enter the map.
func (m *Map[K, V]) TraverseCopy(fn func(key K, value V) bool) {
	items := m.Items()
	for _, it := range items {
		if !fn(it.Key, it.Value) {
			return
		}
	}
}

// InsertIfAbsent is an alias of SetIfAbsent matching the spec's naming.
func (m *Map[K, V]) InsertIfAbsent(key K, value V) bool {
	return m.SetIfAbsent(key, value)
}

// CallAndErase invokes fn with the current value (if any) and removes
// the key, atomically under the shard lock. fn runs even if the key
// was absent (exists=false), so it can express an "erase if present,
// else no-op" policy by checking exists itself.
func (m *Map[K, V]) CallAndErase(key K, fn func(value V, exists bool)) {
	shard := m.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	val, ok := shard.items[key]
	fn(val, ok)
	if ok {
		delete(shard.items, key)
	}
}

// InitIfAbsentElseUpdate initializes the key with initFn if absent, or
// updates the existing value with updateFn otherwise — both run under
// the same shard lock as a single atomic step.
func (m *Map[K, V]) InitIfAbsentElseUpdate(key K, initFn func() V, updateFn func(V) V) V {
	shard := m.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	existing, ok := shard.items[key]
	var next V
	if ok {
		next = updateFn(existing)
	} else {
		next = initFn()
	}
	shard.items[key] = next
	return next
}
