package rpcbus

import "sync"

// PendingTable is the Pending-Request Table (spec §4.3): a concurrent,
// payload-type-erased map from correlation id to a ResponseAction. It is
// built on sync.Map rather than the teacher's map+sync.RWMutex
// (hermes.HermesClient.pending) because §5 requires TryRemove to be an
// atomic take-if-present — sync.Map's LoadAndDelete gives that directly,
// where a mutex-guarded map would need an explicit check-then-delete
// critical section to get the same guarantee.
type PendingTable struct {
	m sync.Map // string -> ResponseAction
}

// Register installs action under correlationID. Callers must ensure
// correlationID is fresh; the table does not itself generate ids.
func (t *PendingTable) Register(correlationID string, action ResponseAction) {
	t.m.Store(correlationID, action)
}

// TryRemove atomically detaches and returns the entry for correlationID, if
// any. It is the only path that may dispatch a reply to a caller, and it is
// safe to call more than once for the same id — only the first call
// succeeds.
func (t *PendingTable) TryRemove(correlationID string) (ResponseAction, bool) {
	v, ok := t.m.LoadAndDelete(correlationID)
	if !ok {
		return ResponseAction{}, false
	}
	return v.(ResponseAction), true
}

// SnapshotAndClear drains the table and returns every action it held, so
// the recovery listener can invoke failure callbacks outside of any lock.
func (t *PendingTable) SnapshotAndClear() []ResponseAction {
	var actions []ResponseAction
	t.m.Range(func(key, value any) bool {
		actions = append(actions, value.(ResponseAction))
		t.m.Delete(key)
		return true
	})
	return actions
}

// Len reports the number of outstanding entries. Approximate under
// concurrent mutation, intended for stats/observability only.
func (t *PendingTable) Len() int {
	n := 0
	t.m.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
