package sink

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pavelanni/eqarena/internal/model"
)

func testPayload() model.Payload {
	return model.Payload{
		Timestamp:     "2026-03-14T15:09:26.535Z",
		Email:         "a@example.com",
		NativeSpeaker: "no",
		Questions:     []model.Submission{{QuestionID: "q1", Q1: true}},
		Feedback:      "fine",
	}
}

func TestHTTPSinkPostsForm(t *testing.T) {
	var got model.Payload
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		if err := json.Unmarshal([]byte(r.PostForm.Get("data")), &got); err != nil {
			t.Errorf("decode data field: %v", err)
		}
		_, _ = w.Write([]byte(`{"success":true,"message":"Data added successfully"}`))
	}))
	defer srv.Close()

	s := NewHTTPSink(srv.URL, time.Second)
	if err := s.Send(context.Background(), testPayload()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if contentType != "application/x-www-form-urlencoded" {
		t.Errorf("content type = %q", contentType)
	}
	if got.Email != "a@example.com" || len(got.Questions) != 1 || !got.Questions[0].Q1 {
		t.Errorf("unexpected payload received: %+v", got)
	}
}

func TestHTTPSinkErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"server error", http.StatusInternalServerError, "boom", nil},
		{"rejected", http.StatusOK, `{"success":false,"error":"sheet locked"}`, ErrRejected},
		{"rejected without message", http.StatusOK, `{"success":false}`, ErrRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := NewHTTPSink(srv.URL, time.Second).Send(context.Background(), testPayload())
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestHTTPSinkPlainOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	if err := NewHTTPSink(srv.URL, time.Second).Send(context.Background(), testPayload()); err != nil {
		t.Fatalf("Send: %v", err)
	}
}

func TestHTTPSinkTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	s := NewHTTPSink(srv.URL, 50*time.Millisecond)
	if err := s.Send(context.Background(), testPayload()); err == nil {
		t.Fatal("expected timeout error")
	}
}

type fakeArchive struct {
	payloads []model.Payload
	err      error
}

func (f *fakeArchive) InsertResponse(_ context.Context, p model.Payload) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.payloads = append(f.payloads, p)
	return int64(len(f.payloads)), nil
}

func TestStoreSink(t *testing.T) {
	a := &fakeArchive{}
	if err := (StoreSink{Archive: a}).Send(context.Background(), testPayload()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(a.payloads) != 1 {
		t.Fatalf("archived %d payloads, want 1", len(a.payloads))
	}

	a.err = errors.New("disk full")
	if err := (StoreSink{Archive: a}).Send(context.Background(), testPayload()); err == nil {
		t.Fatal("expected archive error")
	}
}
