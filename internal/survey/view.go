package survey

import "github.com/pavelanni/eqarena/internal/model"

// ClipView is one player on the question page. It never carries the EQ level.
type ClipView struct {
	Number   int    `json:"number"`
	Speaker  string `json:"speaker"`
	URL      string `json:"url"`
	Unlocked bool   `json:"unlocked"`
	Playable bool   `json:"playable"`
	Selected bool   `json:"selected"`
}

// QuestionView is a render-ready snapshot of the current question.
type QuestionView struct {
	Index       int        `json:"index"`
	Total       int        `json:"total"`
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Context     string     `json:"context"`
	Description string     `json:"description"`
	EQScale     string     `json:"eq_scale,omitempty"`
	Preamble    []ClipView `json:"preamble"`
	Choice1     []ClipView `json:"choice1"`
	Bridge      *ClipView  `json:"bridge,omitempty"`
	Choice2     []ClipView `json:"choice2"`
	Saved       bool       `json:"saved"`
	Complete    bool       `json:"complete"`
	IsLast      bool       `json:"is_last"`
	CanFinish   bool       `json:"can_finish"`
	Playing     int        `json:"playing,omitempty"`
}

// View renders the current question, or false outside the answering step.
func (s *Session) View() (QuestionView, bool) {
	q, ok := s.Current()
	if !ok {
		return QuestionView{}, false
	}
	gt := s.groundTruth[q.ID]
	sel := s.answers.Selection(q.ID)
	l := s.cfg.Layout

	clip := func(n int, picked *model.Choice) (ClipView, bool) {
		f, ok := q.Metadata.Clip(n)
		if !ok {
			return ClipView{}, false
		}
		ref := ClipRef{QuestionID: q.ID, Clip: n}
		return ClipView{
			Number:   n,
			Speaker:  q.Metadata.Scenario.SpeakerName(f.Speaker),
			URL:      s.audioURL(f.AudioPath),
			Unlocked: s.gate.Unlocked(ref),
			Playable: s.gate.CanPlay(ref),
			Selected: picked != nil && picked.ClipNumber == n,
		}, true
	}
	list := func(nums []int, picked *model.Choice) []ClipView {
		var out []ClipView
		for _, n := range nums {
			if c, ok := clip(n, picked); ok {
				out = append(out, c)
			}
		}
		return out
	}

	v := QuestionView{
		Index:       s.index,
		Total:       len(s.questions),
		ID:          q.ID,
		Title:       q.Metadata.Scenario.Title,
		Context:     q.Metadata.Scenario.Context,
		Description: q.Metadata.Scenario.Description,
		EQScale:     q.Metadata.EQScale,
		Preamble:    list(l.Preamble[:], nil),
		Choice1:     list(gt.Choice1.Order[:], sel.Choice1),
		Choice2:     list(gt.Choice2.Order[:], sel.Choice2),
		Saved:       sel.Submission != nil,
		Complete:    s.answers.IsComplete(q.ID),
		IsLast:      s.index == len(s.questions)-1,
	}
	if b, ok := clip(l.Bridge, nil); ok {
		v.Bridge = &b
	}
	v.CanFinish = v.IsLast && s.answers.AllComplete(s.questions)
	if cur, ok := s.gate.Playing(); ok && cur.QuestionID == q.ID {
		v.Playing = cur.Clip
	}
	return v, true
}
