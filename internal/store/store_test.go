package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"testing"

	"github.com/pavelanni/eqarena/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testPayload(email string, ids ...string) model.Payload {
	p := model.Payload{
		Timestamp:     "2026-03-14T15:09:26.535Z",
		Email:         email,
		NativeSpeaker: "yes",
		Feedback:      "nice",
	}
	for i, id := range ids {
		p.Questions = append(p.Questions, model.Submission{QuestionID: id, Q1: i%2 == 0, Q2: i%2 == 1})
	}
	return p
}

func insertTestResponse(t *testing.T, s *Store, p model.Payload) int64 {
	t.Helper()
	id, err := s.InsertResponse(context.Background(), p)
	if err != nil {
		t.Fatalf("insertTestResponse: %v", err)
	}
	return id
}

func TestResponseLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Empty DB.
	count, err := s.ResponseCount(ctx)
	if err != nil {
		t.Fatalf("ResponseCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 responses, got %d", count)
	}

	id := insertTestResponse(t, s, testPayload("a@example.com", "q1", "q2", "q3"))
	r, err := s.getResponse(ctx, id)
	if err != nil {
		t.Fatalf("getResponse: %v", err)
	}
	if r.Email != "a@example.com" || r.NativeSpeaker != "yes" || r.Feedback != "nice" {
		t.Errorf("unexpected response fields: %+v", r)
	}
	if r.ReceivedAt.IsZero() {
		t.Error("expected received_at to be set")
	}
	if len(r.Questions) != 3 {
		t.Fatalf("expected 3 answers, got %d", len(r.Questions))
	}
	if r.Questions[0] != (model.Submission{QuestionID: "q1", Q1: true, Q2: false}) {
		t.Errorf("answer 0 = %+v", r.Questions[0])
	}
	if r.Questions[1] != (model.Submission{QuestionID: "q2", Q1: false, Q2: true}) {
		t.Errorf("answer 1 = %+v", r.Questions[1])
	}

	// Not found.
	if _, err := s.getResponse(ctx, 9999); err != sql.ErrNoRows {
		t.Errorf("expected ErrNoRows, got %v", err)
	}

	insertTestResponse(t, s, testPayload("b@example.com", "q9"))
	list, err := s.ListResponses(ctx)
	if err != nil {
		t.Fatalf("ListResponses: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(list))
	}
	if list[0].Email != "a@example.com" || list[1].Email != "b@example.com" {
		t.Errorf("responses out of order: %s, %s", list[0].Email, list[1].Email)
	}
	if len(list[1].Questions) != 1 || list[1].Questions[0].QuestionID != "q9" {
		t.Errorf("unexpected answers for second response: %+v", list[1].Questions)
	}

	count, _ = s.ResponseCount(ctx)
	if count != 2 {
		t.Errorf("expected 2 responses, got %d", count)
	}
}

func TestSurveyInfo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Missing keys read as zero values.
	info, err := s.GetSurveyInfo(ctx)
	if err != nil {
		t.Fatalf("GetSurveyInfo: %v", err)
	}
	if info != (model.SurveyInfo{}) {
		t.Errorf("expected empty info, got %+v", info)
	}

	want := model.SurveyInfo{DataURL: "/data", ManifestHash: "abc123", PoolSize: 15, NumQuestions: 10}
	if err := s.SetSurveyInfo(ctx, want); err != nil {
		t.Fatalf("SetSurveyInfo: %v", err)
	}
	// Upsert.
	want.ManifestHash = "def456"
	if err := s.SetSurveyInfo(ctx, want); err != nil {
		t.Fatalf("SetSurveyInfo update: %v", err)
	}
	got, err := s.GetSurveyInfo(ctx)
	if err != nil {
		t.Fatalf("GetSurveyInfo: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestExportResponses(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	insertTestResponse(t, s, testPayload("a@example.com", "q1", "q2"))
	insertTestResponse(t, s, testPayload("", "q3"))
	if err := s.SetSurveyInfo(ctx, model.SurveyInfo{NumQuestions: 2}); err != nil {
		t.Fatalf("SetSurveyInfo: %v", err)
	}

	exp, err := s.ExportResponses(ctx)
	if err != nil {
		t.Fatalf("ExportResponses: %v", err)
	}
	if exp.NumResponses != 2 || len(exp.Responses) != 2 {
		t.Fatalf("expected 2 responses, got %d", exp.NumResponses)
	}
	if exp.Survey.NumQuestions != 2 {
		t.Errorf("expected survey info in export, got %+v", exp.Survey)
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, exp.Responses); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	r := csv.NewReader(&buf)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(records))
	}
	if len(records[0]) != 3+2*3+1 {
		t.Errorf("header has %d columns: %v", len(records[0]), records[0])
	}
	if records[1][1] != "a@example.com" || records[1][3] != "q1" || records[1][4] != "true" {
		t.Errorf("unexpected first row: %v", records[1])
	}
	if records[2][1] != "N/A" {
		t.Errorf("empty email should export as N/A, got %q", records[2][1])
	}
}
