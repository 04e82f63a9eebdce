package survey

import (
	"errors"
	"testing"

	"github.com/pavelanni/eqarena/internal/model"
)

type truthMap map[string]model.GroundTruth

func (m truthMap) GroundTruth(id string) (model.GroundTruth, bool) {
	gt, ok := m[id]
	return gt, ok
}

func newTestAnswers() *AnswerStore {
	layout := model.DefaultLayout()
	truth := truthMap{
		"q1": {
			Choice1: model.ChoiceTruth{Order: [2]int{5, 4}, CorrectClipNumber: 4, CorrectPosition: 1},
			Choice2: model.ChoiceTruth{Order: [2]int{7, 8}, CorrectClipNumber: 7, CorrectPosition: 0},
		},
	}
	return NewAnswerStore(layout, truth)
}

func TestRecordAndDerive(t *testing.T) {
	a := newTestAnswers()

	if _, err := a.Derive("q1"); !errors.Is(err, ErrIncompleteQuestion) {
		t.Fatalf("Derive on empty = %v, want ErrIncompleteQuestion", err)
	}

	if err := a.Record("q1", model.Choice1, 4, "high"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if a.IsComplete("q1") {
		t.Fatal("complete with one slot")
	}
	if a.Selection("q1").Submission != nil {
		t.Fatal("auto-save ran with one slot")
	}

	if err := a.Record("q1", model.Choice2, 8, "low"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	sel := a.Selection("q1")
	if sel.Submission == nil {
		t.Fatal("auto-save did not run once both slots were set")
	}
	want := model.Submission{QuestionID: "q1", Q1: true, Q2: false}
	if *sel.Submission != want {
		t.Errorf("cached submission = %+v, want %+v", *sel.Submission, want)
	}

	first, err := a.Derive("q1")
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	second, _ := a.Derive("q1")
	if first != second || first != want {
		t.Errorf("Derive not idempotent: %+v, %+v", first, second)
	}
}

func TestRecordLastWriteWins(t *testing.T) {
	a := newTestAnswers()
	mustRecord := func(slot model.ChoiceSlot, clip int) {
		t.Helper()
		if err := a.Record("q1", slot, clip, ""); err != nil {
			t.Fatalf("Record(%d, %d): %v", slot, clip, err)
		}
	}
	mustRecord(model.Choice1, 4)
	mustRecord(model.Choice2, 7)
	mustRecord(model.Choice1, 5)

	sel := a.Selection("q1")
	if sel.Choice1.ClipNumber != 5 {
		t.Errorf("choice1 = %d, want 5", sel.Choice1.ClipNumber)
	}
	if sel.Submission == nil || sel.Submission.Q1 || !sel.Submission.Q2 {
		t.Errorf("auto-save should reflect latest pick, got %+v", sel.Submission)
	}
}

func TestRecordValidation(t *testing.T) {
	a := newTestAnswers()
	tests := []struct {
		name string
		slot model.ChoiceSlot
		clip int
		want error
	}{
		{"bad slot", 3, 4, ErrInvalidSlot},
		{"clip of other choice", model.Choice1, 7, ErrUnknownClip},
		{"preamble clip", model.Choice2, 1, ErrUnknownClip},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.Record("q1", tt.slot, tt.clip, "")
			if !errors.Is(err, tt.want) {
				t.Errorf("Record() = %v, want %v", err, tt.want)
			}
			if !IsValidation(err) {
				t.Errorf("%v should be a validation error", err)
			}
		})
	}
}

func TestAllCompleteAndSubmissions(t *testing.T) {
	a := newTestAnswers()
	qs := []model.Question{{ID: "q1"}}

	if a.AllComplete(qs) {
		t.Fatal("AllComplete with no answers")
	}
	if _, err := a.Submissions(qs); !errors.Is(err, ErrIncompleteQuestion) {
		t.Fatalf("Submissions = %v, want ErrIncompleteQuestion", err)
	}

	_ = a.Record("q1", model.Choice1, 5, "")
	_ = a.Record("q1", model.Choice2, 7, "")
	if !a.AllComplete(qs) {
		t.Fatal("AllComplete false after answering")
	}
	subs, err := a.Submissions(qs)
	if err != nil {
		t.Fatalf("Submissions: %v", err)
	}
	if len(subs) != 1 || subs[0].Q1 || !subs[0].Q2 {
		t.Errorf("Submissions = %+v", subs)
	}
}
