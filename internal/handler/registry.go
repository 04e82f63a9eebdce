package handler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/eqarena/internal/survey"
)

// PlayerCommand tells the browser to start or stop one of its audio elements.
type PlayerCommand struct {
	Action     string `json:"action"`
	QuestionID string `json:"question_id"`
	Clip       int    `json:"clip"`
}

// commandPlayer collects the gate's start/stop calls so they can be returned
// to the browser with the response that caused them.
type commandPlayer struct {
	cmds []PlayerCommand
}

func (p *commandPlayer) Start(ref survey.ClipRef) error {
	p.cmds = append(p.cmds, PlayerCommand{Action: "start", QuestionID: ref.QuestionID, Clip: ref.Clip})
	return nil
}

func (p *commandPlayer) Stop(ref survey.ClipRef) {
	p.cmds = append(p.cmds, PlayerCommand{Action: "stop", QuestionID: ref.QuestionID, Clip: ref.Clip})
}

func (p *commandPlayer) drain() []PlayerCommand {
	cmds := p.cmds
	p.cmds = nil
	if cmds == nil {
		return []PlayerCommand{}
	}
	return cmds
}

// entry is one participant. mu serializes all requests for the session.
type entry struct {
	mu       sync.Mutex
	session  *survey.Session
	player   *commandPlayer
	lastSeen time.Time
}

// Registry keeps live survey sessions in memory.
type Registry struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[uuid.UUID]*entry
}

// NewRegistry creates a registry. Sessions idle longer than ttl are dropped by
// Sweep; ttl <= 0 keeps them forever.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{ttl: ttl, now: time.Now, entries: make(map[uuid.UUID]*entry)}
}

func (r *Registry) add(e *entry) uuid.UUID {
	id := uuid.New()
	r.mu.Lock()
	defer r.mu.Unlock()
	e.lastSeen = r.now()
	r.entries[id] = e
	return id
}

func (r *Registry) get(idStr string) (*entry, bool) {
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if ok {
		e.lastSeen = r.now()
	}
	return e, ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep removes idle sessions and returns how many were dropped.
func (r *Registry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.ttl)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			delete(r.entries, id)
			n++
		}
	}
	return n
}

// Run sweeps periodically until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if r.ttl <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := r.Sweep(); n > 0 {
				slog.Info("expired survey sessions", "count", n, "live", r.Len())
			}
		}
	}
}
