package survey

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/pavelanni/eqarena/internal/model"
	"golang.org/x/crypto/bcrypt"
)

const testCode = "2026SPEECHEQ"

func newTestGate(t *testing.T) *AccessGate {
	t.Helper()
	g, err := newAccessGate(testCode, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("newAccessGate: %v", err)
	}
	return g
}

func testQuestion(id string) model.Question {
	var files []model.AudioFile
	for n := 1; n <= 8; n++ {
		speaker := "speaker1"
		if n%2 == 0 {
			speaker = "speaker2"
		}
		eq := ""
		switch n {
		case 4, 7:
			eq = "high"
		case 5, 8:
			eq = "low"
		}
		files = append(files, model.AudioFile{
			AudioPath: fmt.Sprintf("data/cat/%s/%02d.mp3", id, n),
			Speaker:   speaker,
			EQLevel:   eq,
		})
	}
	return model.Question{
		ID:   id,
		Path: "data/cat/" + id,
		Metadata: model.ScenarioMetadata{
			Scenario: model.Scenario{
				Title:        "Scenario " + id,
				Context:      "context",
				Description:  "description",
				Speaker1Name: "Ana",
			},
			AudioFiles: files,
		},
	}
}

func testPool(n int) []model.Question {
	pool := make([]model.Question, n)
	for i := range pool {
		pool[i] = testQuestion(fmt.Sprintf("q%02d", i+1))
	}
	return pool
}

type staticSource struct {
	questions []model.Question
	err       error
}

func (s staticSource) Questions(context.Context) ([]model.Question, error) {
	return s.questions, s.err
}

type recordingSink struct {
	payloads []model.Payload
	err      error
}

func (r *recordingSink) Send(_ context.Context, p model.Payload) error {
	if r.err != nil {
		return r.err
	}
	r.payloads = append(r.payloads, p)
	return nil
}

type recordingPlayer struct {
	started  []ClipRef
	stopped  []ClipRef
	startErr error
}

func (p *recordingPlayer) Start(ref ClipRef) error {
	if p.startErr != nil {
		return p.startErr
	}
	p.started = append(p.started, ref)
	return nil
}

func (p *recordingPlayer) Stop(ref ClipRef) {
	p.stopped = append(p.stopped, ref)
}

var fixedNow = time.Date(2026, 3, 14, 15, 9, 26, 535000000, time.UTC)

func newTestSession(t *testing.T, pool []model.Question, k int, sink Sink, opts ...Option) *Session {
	t.Helper()
	cfg := model.SurveyConfig{NumQuestions: k, Layout: model.DefaultLayout()}
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	s := New(cfg, newTestGate(t), sink, opts...)
	if err := s.Load(context.Background(), staticSource{questions: pool}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return s
}

// startAnswering walks a loaded session through the gate and consent steps.
func startAnswering(t *testing.T, s *Session) {
	t.Helper()
	if err := s.SubmitAccessCode(testCode); err != nil {
		t.Fatalf("SubmitAccessCode: %v", err)
	}
	if err := s.Consent("p@example.com", "yes"); err != nil {
		t.Fatalf("Consent: %v", err)
	}
}

func mustChoose(t *testing.T, s *Session, slot model.ChoiceSlot, clip int) {
	t.Helper()
	if err := s.Choose(slot, clip); err != nil {
		t.Fatalf("Choose(%d, %d): %v", slot, clip, err)
	}
}

var errUnavailable = errors.New("service unavailable")
