package orchestrator

import "sync"

// conversationLocks serializes request handling per conversation id while
// leaving different conversations fully parallel. Entries are reference
// counted so the map does not grow without bound.
type conversationLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newConversationLocks() *conversationLocks {
	return &conversationLocks{locks: make(map[string]*lockEntry)}
}

// acquire blocks until the caller holds the conversation's lock and
// returns the release func.
func (c *conversationLocks) acquire(id string) func() {
	c.mu.Lock()
	e, ok := c.locks[id]
	if !ok {
		e = &lockEntry{}
		c.locks[id] = e
	}
	e.refs++
	c.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		c.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(c.locks, id)
		}
		c.mu.Unlock()
	}
}
