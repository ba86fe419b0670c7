package agent

import "sync"

// Gate serializes engine runs per conversation and coalesces bursts. Each
// conversation gets its own lazily created lock so unrelated conversations
// never contend.
type Gate struct {
	mu     sync.Mutex
	states map[string]*gateState
}

type gateState struct {
	mu         sync.Mutex
	responding bool
	queued     bool
}

func NewGate() *Gate {
	return &Gate{states: make(map[string]*gateState)}
}

func (g *Gate) state(conversationID string) *gateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.states[conversationID]
	if !ok {
		st = &gateState{}
		g.states[conversationID] = st
	}
	return st
}

// Acquire admits a run for the conversation. If a run is already active the
// queued flag is set instead and false is returned: the caller must not start
// a model loop.
func (g *Gate) Acquire(conversationID string) bool {
	st := g.state(conversationID)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.responding {
		st.queued = true
		return false
	}
	st.responding = true
	return true
}

// TakeQueued consumes the queued flag, keeping the run admitted. The active
// run calls this at a text terminal to decide whether to loop once more for a
// message that arrived mid-run.
func (g *Gate) TakeQueued(conversationID string) bool {
	st := g.state(conversationID)
	st.mu.Lock()
	defer st.mu.Unlock()
	if !st.queued {
		return false
	}
	st.queued = false
	return true
}

// Release clears both flags unconditionally. Called on every terminal exit of
// an admitted run, whatever the exit path.
func (g *Gate) Release(conversationID string) {
	st := g.state(conversationID)
	st.mu.Lock()
	st.responding = false
	st.queued = false
	st.mu.Unlock()
}

// Forget drops the conversation's state entirely. Used on conversation reset.
func (g *Gate) Forget(conversationID string) {
	g.mu.Lock()
	delete(g.states, conversationID)
	g.mu.Unlock()
}
