package survey

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/pavelanni/eqarena/internal/model"
)

// State is a step of the survey.
type State string

const (
	StateLoading    State = "loading"
	StateError      State = "error"
	StateAccessGate State = "access_gate"
	StateConsent    State = "consent"
	StateAnswering  State = "answering"
	StateFeedback   State = "feedback"
	StateDone       State = "done"
)

// Source provides the full question pool.
type Source interface {
	Questions(ctx context.Context) ([]model.Question, error)
}

// Sink receives the consolidated payload once per session.
type Sink interface {
	Send(ctx context.Context, p model.Payload) error
}

// Option configures a Session.
type Option func(*Session)

// WithClock replaces the wall clock used for seeding and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithPlayer sets the player driven by the playback gate.
func WithPlayer(p Player) Option {
	return func(s *Session) { s.player = p }
}

// WithAudioURL sets how audio paths are turned into URLs in views.
func WithAudioURL(resolve func(path string) string) Option {
	return func(s *Session) { s.audioURL = resolve }
}

// Session is the state of one participant's survey. It is not safe for
// concurrent use; callers serialize access.
type Session struct {
	cfg    model.SurveyConfig
	access *AccessGate
	sink   Sink

	now      func() time.Time
	player   Player
	audioURL func(string) string

	state     State
	loadErr   error
	rng       *rand.Rand
	questions []model.Question
	index     int

	groundTruth map[string]model.GroundTruth
	answers     *AnswerStore
	gate        *PlaybackGate

	accessInput string
	user        model.UserInfo
	feedback    string
	submitted   bool
}

// New creates a session in the loading state.
func New(cfg model.SurveyConfig, access *AccessGate, sink Sink, opts ...Option) *Session {
	s := &Session{
		cfg:         cfg,
		access:      access,
		sink:        sink,
		now:         time.Now,
		audioURL:    func(p string) string { return p },
		state:       StateLoading,
		groundTruth: make(map[string]model.GroundTruth),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.answers = NewAnswerStore(cfg.Layout, s)
	s.gate = NewPlaybackGate(cfg.Layout, s.player, func(qID string) bool {
		return s.answers.HasChoice(qID, model.Choice1)
	})
	return s
}

// Load pulls the pool from src and samples this session's questions.
// Any failure moves the session to the terminal error state.
func (s *Session) Load(ctx context.Context, src Source) error {
	if s.state != StateLoading {
		return ErrInvalidState
	}
	pool, err := src.Questions(ctx)
	if err != nil {
		s.fail(fmt.Errorf("load questions: %w", err))
		return s.loadErr
	}

	s.rng = NewSeededRand(s.now())
	k := s.cfg.NumQuestions
	if k <= 0 {
		k = len(pool)
	}
	s.questions = Sample(pool, k, s.rng)
	if len(s.questions) == 0 {
		s.fail(ErrNoQuestions)
		return s.loadErr
	}

	slog.Debug("session loaded", "pool", len(pool), "sampled", len(s.questions))
	s.state = StateAccessGate
	return nil
}

func (s *Session) fail(err error) {
	slog.Error("survey load failed", "error", err)
	s.loadErr = err
	s.state = StateError
}

// State returns the current step.
func (s *Session) State() State { return s.state }

// Err returns the load error of a session in the error state.
func (s *Session) Err() error { return s.loadErr }

// Index returns the position of the current question.
func (s *Session) Index() int { return s.index }

// Questions returns the sampled questions in order.
func (s *Session) Questions() []model.Question { return s.questions }

// Current returns the question being answered.
func (s *Session) Current() (model.Question, bool) {
	if s.state != StateAnswering || s.index >= len(s.questions) {
		return model.Question{}, false
	}
	return s.questions[s.index], true
}

// User returns the consent details.
func (s *Session) User() model.UserInfo { return s.user }

// AccessInput returns what remains in the access code field.
func (s *Session) AccessInput() string { return s.accessInput }

// GroundTruth implements TruthSource.
func (s *Session) GroundTruth(questionID string) (model.GroundTruth, bool) {
	gt, ok := s.groundTruth[questionID]
	return gt, ok
}

// Selection returns the picks recorded for a question.
func (s *Session) Selection(questionID string) model.Selection {
	return s.answers.Selection(questionID)
}

// Gate exposes the playback gate.
func (s *Session) Gate() *PlaybackGate { return s.gate }

// Answers exposes the answer store.
func (s *Session) Answers() *AnswerStore { return s.answers }

// SubmitAccessCode checks the participation code. A wrong code clears the input
// and leaves the session at the gate.
func (s *Session) SubmitAccessCode(code string) error {
	if s.state != StateAccessGate {
		return ErrInvalidState
	}
	s.accessInput = code
	if !s.access.Check(code) {
		s.accessInput = ""
		return ErrInvalidAccessCode
	}
	s.state = StateConsent
	return nil
}

// Consent records the participant details and starts the first question.
func (s *Session) Consent(email, nativeSpeaker string) error {
	if s.state != StateConsent {
		return ErrInvalidState
	}
	email = strings.TrimSpace(email)
	nativeSpeaker = strings.TrimSpace(nativeSpeaker)
	if email == "" || nativeSpeaker == "" {
		return ErrConsentRequired
	}
	s.user = model.UserInfo{Email: email, NativeSpeaker: nativeSpeaker}
	s.state = StateAnswering
	s.enter(0)
	return nil
}

// enter moves to question i, generating its ground truth on first visit.
func (s *Session) enter(i int) {
	s.index = i
	q := s.questions[i]
	if _, ok := s.groundTruth[q.ID]; !ok {
		s.groundTruth[q.ID] = Randomize(s.cfg.Layout, s.rng)
	}
	s.answers.AutoSave(q.ID)
}

// Choose records a pick for the current question.
func (s *Session) Choose(slot model.ChoiceSlot, clip int) error {
	q, ok := s.Current()
	if !ok {
		return ErrInvalidState
	}
	if !slot.Valid() {
		return ErrInvalidSlot
	}
	var eqLevel string
	if f, ok := q.Metadata.Clip(clip); ok {
		eqLevel = f.EQLevel
	} else if s.cfg.Layout.Choice(slot).Has(clip) {
		return fmt.Errorf("clip %d missing from question %s: %w", clip, q.ID, ErrUnknownClip)
	}
	return s.answers.Record(q.ID, slot, clip, eqLevel)
}

// Request asks for playback of a clip of the current question and reports
// whether the player was told to start it. The clip stays locked until the
// following ClipStarted event.
func (s *Session) Request(clip int) (bool, error) {
	q, ok := s.Current()
	if !ok {
		return false, ErrInvalidState
	}
	return s.gate.Request(ClipRef{QuestionID: q.ID, Clip: clip}), nil
}

// Playback feeds a media event for a clip of the current question.
func (s *Session) Playback(kind EventKind, clip int) (bool, error) {
	q, ok := s.Current()
	if !ok {
		return false, ErrInvalidState
	}
	return s.gate.Handle(Event{Kind: kind, Ref: ClipRef{QuestionID: q.ID, Clip: clip}}), nil
}

// Next advances when the current question is complete.
func (s *Session) Next() error {
	q, ok := s.Current()
	if !ok {
		return ErrInvalidState
	}
	if !s.answers.IsComplete(q.ID) {
		return ErrIncompleteQuestion
	}
	if s.index+1 >= len(s.questions) {
		return ErrNoNextQuestion
	}
	s.answers.AutoSave(q.ID)
	s.enter(s.index + 1)
	return nil
}

// Previous goes back one question without any validation.
func (s *Session) Previous() error {
	if s.state != StateAnswering {
		return ErrInvalidState
	}
	if s.index > 0 {
		s.enter(s.index - 1)
	}
	return nil
}

// Finish leaves the last question for the feedback step once every question
// is complete.
func (s *Session) Finish() error {
	if s.state != StateAnswering {
		return ErrInvalidState
	}
	if s.index != len(s.questions)-1 {
		return ErrNotLastQuestion
	}
	for _, q := range s.questions {
		s.answers.AutoSave(q.ID)
	}
	if !s.answers.AllComplete(s.questions) {
		return ErrIncompleteSurvey
	}
	s.state = StateFeedback
	return nil
}

// Payload builds the consolidated submission document.
func (s *Session) Payload() (model.Payload, error) {
	subs, err := s.answers.Submissions(s.questions)
	if err != nil {
		return model.Payload{}, err
	}
	return model.Payload{
		Timestamp:     s.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Email:         s.user.Email,
		NativeSpeaker: s.user.NativeSpeaker,
		Questions:     subs,
		Feedback:      s.feedback,
	}, nil
}

// SubmitFeedback sends everything to the sink exactly once. A sink failure
// keeps the session in the feedback step so the participant can retry.
func (s *Session) SubmitFeedback(ctx context.Context, feedback string) error {
	if s.submitted || s.state == StateDone {
		return ErrAlreadySubmitted
	}
	if s.state != StateFeedback {
		return ErrInvalidState
	}
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return ErrEmptyFeedback
	}
	s.feedback = feedback

	payload, err := s.Payload()
	if err != nil {
		return err
	}

	s.submitted = true
	slog.Info("submitting responses", "questions", len(payload.Questions))
	if err := s.sink.Send(ctx, payload); err != nil {
		s.submitted = false
		return fmt.Errorf("submit responses: %w", err)
	}
	s.state = StateDone
	return nil
}
