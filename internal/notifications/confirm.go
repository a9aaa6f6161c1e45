package notifications

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultConfirmTimeout is how long a prompt waits for a moderator answer
// before it is treated as declined.
const DefaultConfirmTimeout = 2 * time.Minute

// ErrUnknownPrompt is returned when answering a prompt that is not pending.
var ErrUnknownPrompt = errors.New("confirmation prompt not pending")

// Prompt is a question waiting for a moderator.
type Prompt struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type pendingPrompt struct {
	Prompt
	answer chan bool
}

// Confirmations lets background sweeps ask the dashboard a yes/no question.
// Confirm blocks until Answer is called for the prompt, the timeout
// elapses or ctx ends; only an explicit approval returns true.
type Confirmations struct {
	mu      sync.Mutex
	pending map[string]*pendingPrompt
	timeout time.Duration
	onAsk   func(Prompt)
}

// NewConfirmations returns an empty prompt registry. onAsk, when set, is
// called for every new prompt so it can be announced.
func NewConfirmations(timeout time.Duration, onAsk func(Prompt)) *Confirmations {
	if timeout <= 0 {
		timeout = DefaultConfirmTimeout
	}
	return &Confirmations{pending: make(map[string]*pendingPrompt), timeout: timeout, onAsk: onAsk}
}

// Confirm implements scanner.Confirmer.
func (c *Confirmations) Confirm(ctx context.Context, message string) (bool, error) {
	now := time.Now().UTC()
	p := &pendingPrompt{
		Prompt: Prompt{
			ID:        uuid.NewString(),
			Message:   message,
			CreatedAt: now,
			ExpiresAt: now.Add(c.timeout),
		},
		answer: make(chan bool, 1),
	}

	c.mu.Lock()
	c.pending[p.ID] = p
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, p.ID)
		c.mu.Unlock()
	}()

	if c.onAsk != nil {
		c.onAsk(p.Prompt)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case ok := <-p.answer:
		return ok, nil
	case <-timer.C:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Answer resolves a pending prompt.
func (c *Confirmations) Answer(id string, approve bool) error {
	c.mu.Lock()
	p, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if !ok {
		return ErrUnknownPrompt
	}
	p.answer <- approve
	return nil
}

// Pending lists open prompts, oldest first.
func (c *Confirmations) Pending() []Prompt {
	c.mu.Lock()
	out := make([]Prompt, 0, len(c.pending))
	for _, p := range c.pending {
		out = append(out, p.Prompt)
	}
	c.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
