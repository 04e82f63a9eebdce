package model

import (
	"context"
	"fmt"
	"strings"
)

// AudioFile describes one clip of a scenario.
type AudioFile struct {
	AudioPath string `json:"audio_path"`
	Speaker   string `json:"speaker"`
	EQLevel   string `json:"eq_level"`
}

// Scenario holds the text shown alongside the clips.
type Scenario struct {
	Title        string `json:"title"`
	Context      string `json:"context"`
	Description  string `json:"description"`
	Speaker1Name string `json:"speaker1_name,omitempty"`
	Speaker2Name string `json:"speaker2_name,omitempty"`
}

// SpeakerName returns the display name for a speaker key.
func (s Scenario) SpeakerName(speaker string) string {
	switch speaker {
	case "speaker1":
		if s.Speaker1Name != "" {
			return s.Speaker1Name
		}
		return "Speaker 1"
	case "speaker2":
		if s.Speaker2Name != "" {
			return s.Speaker2Name
		}
		return "Speaker 2"
	}
	return "Unknown"
}

// GenerationMetadata is the provenance block of a metadata document.
type GenerationMetadata struct {
	DatasetID string `json:"dataset_id"`
}

// ScenarioMetadata is the per-question metadata document.
type ScenarioMetadata struct {
	Scenario           Scenario           `json:"scenario"`
	AudioFiles         []AudioFile        `json:"audio_files"`
	EQScale            string             `json:"eq_scale,omitempty"`
	GenerationMetadata GenerationMetadata `json:"generation_metadata,omitempty"`
}

// Clip finds the audio file whose path ends in the two-digit clip number.
func (m ScenarioMetadata) Clip(n int) (AudioFile, bool) {
	suffix := fmt.Sprintf("/%02d.mp3", n)
	for _, f := range m.AudioFiles {
		if strings.HasSuffix(f.AudioPath, suffix) || f.AudioPath == suffix[1:] {
			return f, true
		}
	}
	return AudioFile{}, false
}

// Question is one loaded survey item. It is immutable once loaded.
type Question struct {
	ID       string           `json:"id"`
	Path     string           `json:"path"`
	Metadata ScenarioMetadata `json:"metadata"`
}

// ManifestEntry is one line of the question manifest.
type ManifestEntry struct {
	ID           string `json:"id"`
	Path         string `json:"path"`
	MetadataPath string `json:"metadataPath"`
}

// Manifest lists the questions available to the survey.
type Manifest struct {
	Questions []ManifestEntry `json:"questions"`
}

// ChoiceSlot identifies one of the two decisions in a question.
type ChoiceSlot int

const (
	Choice1 ChoiceSlot = 1
	Choice2 ChoiceSlot = 2
)

// Valid reports whether the slot is 1 or 2.
func (c ChoiceSlot) Valid() bool {
	return c == Choice1 || c == Choice2
}

// ChoiceLayout configures the two candidate clips of one decision.
type ChoiceLayout struct {
	Candidates [2]int `json:"candidates" mapstructure:"candidates"`
	Correct    int    `json:"correct" mapstructure:"correct"`
}

// Has reports whether clip is one of the candidates.
func (c ChoiceLayout) Has(clip int) bool {
	return c.Candidates[0] == clip || c.Candidates[1] == clip
}

// Layout fixes which clip numbers play which role in every question.
// The correct clips are configuration; they are never derived from metadata.
type Layout struct {
	Preamble [3]int       `json:"preamble"`
	Choice1  ChoiceLayout `json:"choice1"`
	Bridge   int          `json:"bridge"`
	Choice2  ChoiceLayout `json:"choice2"`
}

// DefaultLayout is 01-03 context, 04/05 first decision (04 correct),
// 06 bridge, 07/08 second decision (07 correct).
func DefaultLayout() Layout {
	return Layout{
		Preamble: [3]int{1, 2, 3},
		Choice1:  ChoiceLayout{Candidates: [2]int{4, 5}, Correct: 4},
		Bridge:   6,
		Choice2:  ChoiceLayout{Candidates: [2]int{7, 8}, Correct: 7},
	}
}

// Choice returns the layout of a slot.
func (l Layout) Choice(slot ChoiceSlot) ChoiceLayout {
	if slot == Choice2 {
		return l.Choice2
	}
	return l.Choice1
}

// Validate checks that every clip number is used exactly once.
func (l Layout) Validate() error {
	seen := make(map[int]bool)
	clips := []int{l.Preamble[0], l.Preamble[1], l.Preamble[2],
		l.Choice1.Candidates[0], l.Choice1.Candidates[1], l.Bridge,
		l.Choice2.Candidates[0], l.Choice2.Candidates[1]}
	for _, c := range clips {
		if c <= 0 {
			return fmt.Errorf("invalid clip number %d", c)
		}
		if seen[c] {
			return fmt.Errorf("clip %d used twice", c)
		}
		seen[c] = true
	}
	if !l.Choice1.Has(l.Choice1.Correct) {
		return fmt.Errorf("choice 1 correct clip %d is not a candidate", l.Choice1.Correct)
	}
	if !l.Choice2.Has(l.Choice2.Correct) {
		return fmt.Errorf("choice 2 correct clip %d is not a candidate", l.Choice2.Correct)
	}
	return nil
}

// ChoiceTruth is the randomized display order of one decision.
type ChoiceTruth struct {
	Order             [2]int `json:"order"`
	CorrectClipNumber int    `json:"correct_clip_number"`
	CorrectPosition   int    `json:"correct_position"`
}

// GroundTruth is generated once per question, on first visit.
type GroundTruth struct {
	Choice1 ChoiceTruth `json:"choice1"`
	Choice2 ChoiceTruth `json:"choice2"`
}

// Choice returns the truth for a slot.
func (g GroundTruth) Choice(slot ChoiceSlot) ChoiceTruth {
	if slot == Choice2 {
		return g.Choice2
	}
	return g.Choice1
}

// Choice is one recorded user pick.
type Choice struct {
	ClipNumber int    `json:"clip_number"`
	EQLevel    string `json:"eq_level"`
}

// Submission is the per-question result that leaves the system.
type Submission struct {
	QuestionID string `json:"q_id"`
	Q1         bool   `json:"q1bool"`
	Q2         bool   `json:"q2bool"`
}

// Selection holds the user's picks for one question.
type Selection struct {
	Choice1    *Choice     `json:"choice1"`
	Choice2    *Choice     `json:"choice2"`
	Submission *Submission `json:"submission,omitempty"`
}

// Slot returns the pick for a slot, or nil.
func (s Selection) Slot(slot ChoiceSlot) *Choice {
	if slot == Choice2 {
		return s.Choice2
	}
	return s.Choice1
}

// UserInfo is collected on the consent step.
type UserInfo struct {
	Email         string `json:"email"`
	NativeSpeaker string `json:"nativeSpeaker"`
}

// Payload is the consolidated document sent to the submission sink.
type Payload struct {
	Timestamp     string       `json:"timestamp"`
	Email         string       `json:"email"`
	NativeSpeaker string       `json:"nativeSpeaker"`
	Questions     []Submission `json:"questions"`
	Feedback      string       `json:"feedback"`
}

// SurveyConfig holds runtime survey parameters set via CLI flags.
type SurveyConfig struct {
	NumQuestions int    // questions sampled per session
	BasePath     string // URL prefix for sub-path deployments (e.g. "/eq")
	DataURL      string // public prefix for audio files
	Layout       Layout
}

type basePathCtxKey struct{}

// ContextWithBasePath stores the base path prefix in context.
func ContextWithBasePath(ctx context.Context, basePath string) context.Context {
	return context.WithValue(ctx, basePathCtxKey{}, basePath)
}

// BasePathFromContext retrieves the base path from context (empty string if not set).
func BasePathFromContext(ctx context.Context) string {
	bp, _ := ctx.Value(basePathCtxKey{}).(string)
	return bp
}
