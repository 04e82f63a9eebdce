package survey

import (
	"fmt"

	"github.com/pavelanni/eqarena/internal/model"
)

// TruthSource looks up the randomized ground truth of a question.
type TruthSource interface {
	GroundTruth(questionID string) (model.GroundTruth, bool)
}

// AnswerStore keeps the two picks per question and their derived correctness.
type AnswerStore struct {
	layout     model.Layout
	truth      TruthSource
	selections map[string]*model.Selection
}

// NewAnswerStore creates an empty store.
func NewAnswerStore(layout model.Layout, truth TruthSource) *AnswerStore {
	return &AnswerStore{
		layout:     layout,
		truth:      truth,
		selections: make(map[string]*model.Selection),
	}
}

// Record overwrites the pick for a slot. Once both slots are set the
// submission is derived and cached in the same call.
func (a *AnswerStore) Record(questionID string, slot model.ChoiceSlot, clip int, eqLevel string) error {
	if !slot.Valid() {
		return ErrInvalidSlot
	}
	if !a.layout.Choice(slot).Has(clip) {
		return fmt.Errorf("clip %d in choice %d: %w", clip, slot, ErrUnknownClip)
	}

	sel := a.selection(questionID)
	pick := &model.Choice{ClipNumber: clip, EQLevel: eqLevel}
	if slot == model.Choice1 {
		sel.Choice1 = pick
	} else {
		sel.Choice2 = pick
	}

	a.AutoSave(questionID)
	return nil
}

// AutoSave caches the derived submission when the question is complete.
// It reports whether a submission was stored.
func (a *AnswerStore) AutoSave(questionID string) bool {
	sub, err := a.Derive(questionID)
	if err != nil {
		return false
	}
	a.selection(questionID).Submission = &sub
	return true
}

// Derive computes the submission from the current picks. It does not modify the store.
func (a *AnswerStore) Derive(questionID string) (model.Submission, error) {
	sel, ok := a.selections[questionID]
	if !ok || sel.Choice1 == nil || sel.Choice2 == nil {
		return model.Submission{}, ErrIncompleteQuestion
	}
	gt, ok := a.truth.GroundTruth(questionID)
	if !ok {
		return model.Submission{}, fmt.Errorf("question %s: %w", questionID, ErrUnknownQuestion)
	}
	return model.Submission{
		QuestionID: questionID,
		Q1:         sel.Choice1.ClipNumber == gt.Choice1.CorrectClipNumber,
		Q2:         sel.Choice2.ClipNumber == gt.Choice2.CorrectClipNumber,
	}, nil
}

// IsComplete reports whether both slots of a question are set.
func (a *AnswerStore) IsComplete(questionID string) bool {
	sel, ok := a.selections[questionID]
	return ok && sel.Choice1 != nil && sel.Choice2 != nil
}

// HasChoice reports whether a slot of a question is set.
func (a *AnswerStore) HasChoice(questionID string, slot model.ChoiceSlot) bool {
	sel, ok := a.selections[questionID]
	return ok && sel.Slot(slot) != nil
}

// AllComplete reports whether every question is complete.
func (a *AnswerStore) AllComplete(questions []model.Question) bool {
	for _, q := range questions {
		if !a.IsComplete(q.ID) {
			return false
		}
	}
	return true
}

// Selection returns a copy of the picks of a question.
func (a *AnswerStore) Selection(questionID string) model.Selection {
	sel, ok := a.selections[questionID]
	if !ok {
		return model.Selection{}
	}
	return *sel
}

// Submissions collects one submission per question in order, reusing cached
// ones and deriving the rest.
func (a *AnswerStore) Submissions(questions []model.Question) ([]model.Submission, error) {
	out := make([]model.Submission, 0, len(questions))
	for _, q := range questions {
		if sel, ok := a.selections[q.ID]; ok && sel.Submission != nil {
			out = append(out, *sel.Submission)
			continue
		}
		sub, err := a.Derive(q.ID)
		if err != nil {
			return nil, fmt.Errorf("question %s: %w", q.ID, err)
		}
		out = append(out, sub)
	}
	return out, nil
}

func (a *AnswerStore) selection(questionID string) *model.Selection {
	sel, ok := a.selections[questionID]
	if !ok {
		sel = &model.Selection{}
		a.selections[questionID] = sel
	}
	return sel
}
