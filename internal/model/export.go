package model

import (
	"fmt"
	"time"
)

// Response is one archived participant submission.
type Response struct {
	ID         int64     `json:"id"`
	ReceivedAt time.Time `json:"received_at"`
	Payload
}

// SurveyInfo records the configuration the server last ran with.
type SurveyInfo struct {
	DataURL      string `json:"data_url"`
	ManifestHash string `json:"manifest_hash"`
	PoolSize     int    `json:"pool_size"`
	NumQuestions int    `json:"num_questions"`
}

// ResponseExport is the top-level JSON structure for response export.
type ResponseExport struct {
	ExportedAt   time.Time  `json:"exported_at"`
	Survey       SurveyInfo `json:"survey"`
	NumResponses int        `json:"num_responses"`
	Responses    []Response `json:"responses"`
}

// SheetHeader builds the spreadsheet header for n questions.
func SheetHeader(n int) []string {
	header := []string{"Timestamp", "Email", "Native Speaker"}
	for i := 1; i <= n; i++ {
		header = append(header,
			fmt.Sprintf("Q%d_ID", i),
			fmt.Sprintf("Q%d_Q1", i),
			fmt.Sprintf("Q%d_Q2", i),
		)
	}
	return append(header, "Feedback")
}

// SheetRow flattens a payload into one spreadsheet row.
func (p Payload) SheetRow() []string {
	row := []string{orNA(p.Timestamp), orNA(p.Email), orNA(p.NativeSpeaker)}
	for _, q := range p.Questions {
		row = append(row, orNA(q.QuestionID), fmt.Sprint(q.Q1), fmt.Sprint(q.Q2))
	}
	return append(row, p.Feedback)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
