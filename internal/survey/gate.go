package survey

import (
	"log/slog"

	"github.com/pavelanni/eqarena/internal/model"
)

// ClipRef identifies a clip within a question.
type ClipRef struct {
	QuestionID string `json:"question_id"`
	Clip       int    `json:"clip"`
}

// Player starts and stops clips. Stop also rewinds the clip to its beginning.
type Player interface {
	Start(ref ClipRef) error
	Stop(ref ClipRef)
}

// EventKind is a playback lifecycle event reported by the media side.
type EventKind string

const (
	ClipStarted EventKind = "start"
	ClipPaused  EventKind = "pause"
	ClipEnded   EventKind = "end"
)

// Event is one playback notification.
type Event struct {
	Kind EventKind
	Ref  ClipRef
}

type nopPlayer struct{}

func (nopPlayer) Start(ClipRef) error { return nil }
func (nopPlayer) Stop(ClipRef)        {}

// PlaybackGate unlocks clips in causal order: the three context clips one after
// another, then the first decision, then the bridge clip (which also needs a
// first-decision pick), then the second decision.
// A clip is unlocked the first time it starts and never locks again.
type PlaybackGate struct {
	layout          model.Layout
	player          Player
	choice1Recorded func(questionID string) bool

	unlocked map[string]map[int]bool
	playing  *ClipRef
}

// NewPlaybackGate creates a gate. choice1Recorded reports whether the user has
// picked a clip for the first decision of a question.
func NewPlaybackGate(layout model.Layout, player Player, choice1Recorded func(string) bool) *PlaybackGate {
	if player == nil {
		player = nopPlayer{}
	}
	return &PlaybackGate{
		layout:          layout,
		player:          player,
		choice1Recorded: choice1Recorded,
		unlocked:        make(map[string]map[int]bool),
	}
}

// Unlocked reports whether the clip has ever started.
func (g *PlaybackGate) Unlocked(ref ClipRef) bool {
	return g.unlocked[ref.QuestionID][ref.Clip]
}

// Playing returns the clip currently playing, if any.
func (g *PlaybackGate) Playing() (ClipRef, bool) {
	if g.playing == nil {
		return ClipRef{}, false
	}
	return *g.playing, true
}

// CanPlay evaluates the unlock predicate for a clip.
func (g *PlaybackGate) CanPlay(ref ClipRef) bool {
	l := g.layout
	q := ref.QuestionID
	preambleDone := g.unlocked[q][l.Preamble[2]]

	switch {
	case ref.Clip == l.Preamble[0]:
		return true
	case ref.Clip == l.Preamble[1]:
		return g.unlocked[q][l.Preamble[0]]
	case ref.Clip == l.Preamble[2]:
		return g.unlocked[q][l.Preamble[1]]
	case l.Choice1.Has(ref.Clip):
		return preambleDone
	case ref.Clip == l.Bridge:
		return preambleDone && g.choice1Recorded != nil && g.choice1Recorded(q)
	case l.Choice2.Has(ref.Clip):
		return g.unlocked[q][l.Bridge]
	}
	return false
}

// Request asks the player to start a clip without unlocking it. The clip
// unlocks once the media side reports ClipStarted. A locked clip is stopped
// and rewound instead and Request returns false.
func (g *PlaybackGate) Request(ref ClipRef) bool {
	if !g.CanPlay(ref) {
		g.block(ref)
		return false
	}
	g.stopCurrent(ref)
	if err := g.player.Start(ref); err != nil {
		slog.Warn("clip failed to start", "question_id", ref.QuestionID, "clip", ref.Clip, "error", err)
		return false
	}
	return true
}

// Handle applies a playback event raised by the media side. For ClipStarted it
// returns whether playback is allowed to continue.
func (g *PlaybackGate) Handle(ev Event) bool {
	switch ev.Kind {
	case ClipStarted:
		if !g.CanPlay(ev.Ref) {
			g.block(ev.Ref)
			return false
		}
		g.stopCurrent(ev.Ref)
		g.admit(ev.Ref)
		return true
	case ClipPaused, ClipEnded:
		if g.playing != nil && *g.playing == ev.Ref {
			g.playing = nil
		}
		return true
	}
	return false
}

func (g *PlaybackGate) block(ref ClipRef) {
	slog.Debug("blocked locked clip", "question_id", ref.QuestionID, "clip", ref.Clip)
	g.player.Stop(ref)
}

func (g *PlaybackGate) stopCurrent(next ClipRef) {
	if g.playing != nil && *g.playing != next {
		g.player.Stop(*g.playing)
	}
	g.playing = nil
}

func (g *PlaybackGate) admit(ref ClipRef) {
	clips := g.unlocked[ref.QuestionID]
	if clips == nil {
		clips = make(map[int]bool)
		g.unlocked[ref.QuestionID] = clips
	}
	clips[ref.Clip] = true
	g.playing = &ref
}
