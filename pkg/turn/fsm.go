package turn

import (
	"fmt"
	"sync"
	"time"
)

// Phase is the conversation state of one call.
type Phase int

const (
	// PhaseIdle means the agent is listening and nothing is pending.
	PhaseIdle Phase = iota
	// PhaseAwaitingReply means a final transcript was accepted and a
	// reply is being generated.
	PhaseAwaitingReply
	// PhaseSpeaking means reply audio is being streamed to the caller.
	PhaseSpeaking
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseAwaitingReply:
		return "AWAITING_REPLY"
	case PhaseSpeaking:
		return "SPEAKING"
	default:
		return "UNKNOWN"
	}
}

// PhaseChange is a state transition event.
type PhaseChange struct {
	From      Phase
	To        Phase
	Timestamp time.Time
	Reason    string
}

// PhaseListener observes conversation transitions.
type PhaseListener interface {
	OnPhaseChange(event PhaseChange)
}

// InvalidTransitionError reports a transition the conversation does
// not allow.
type InvalidTransitionError struct {
	From Phase
	To   Phase
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid turn transition %s -> %s", e.From, e.To)
}

// Conversation tracks the turn-taking state of a single call. All
// transitions are serialized by the caller's event loop; the mutex
// only protects reads from other goroutines.
type Conversation struct {
	mu        sync.RWMutex
	phase     Phase
	listeners []PhaseListener

	speakingSince time.Time
}

func NewConversation() *Conversation {
	return &Conversation{phase: PhaseIdle}
}

func (c *Conversation) Phase() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

func (c *Conversation) AddListener(l PhaseListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

func transitionValid(from, to Phase) bool {
	switch from {
	case PhaseIdle:
		return to == PhaseAwaitingReply
	case PhaseAwaitingReply:
		// A reply can be cancelled before any audio is produced.
		return to == PhaseSpeaking || to == PhaseIdle
	case PhaseSpeaking:
		// Interruption restarts generation without passing through idle.
		return to == PhaseIdle || to == PhaseAwaitingReply
	}
	return false
}

// Transition moves to a new phase; invalid moves are rejected.
func (c *Conversation) Transition(to Phase, reason string) error {
	c.mu.Lock()
	if !transitionValid(c.phase, to) {
		from := c.phase
		c.mu.Unlock()
		return &InvalidTransitionError{From: from, To: to}
	}
	from := c.phase
	c.phase = to
	if to == PhaseSpeaking {
		c.speakingSince = time.Now()
	}
	listeners := make([]PhaseListener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	event := PhaseChange{From: from, To: to, Timestamp: time.Now(), Reason: reason}
	for _, l := range listeners {
		l.OnPhaseChange(event)
	}
	return nil
}

// SpeakingFor reports how long the current speaking phase has run.
func (c *Conversation) SpeakingFor() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.phase != PhaseSpeaking {
		return 0
	}
	return time.Since(c.speakingSince)
}
