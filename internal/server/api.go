package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/synchire/interview-agent/internal/completion"
	"github.com/synchire/interview-agent/internal/session"
	"github.com/synchire/interview-agent/internal/storage"
	"github.com/synchire/interview-agent/internal/transcript"
)

var callIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// InterviewStore serves the interview history endpoints.
type InterviewStore interface {
	GetInterviewsByDate(date string) ([]storage.Interview, error)
	GetInterview(id string) (storage.Interview, error)
	GetTranscript(interviewID string) ([]transcript.Entry, error)
	GetDates() ([]string, error)
}

// InterviewService starts and stops live sessions.
type InterviewService interface {
	Start(req session.Request) error
	ShutdownOne(ctx context.Context, callID string) error
	Statuses() []session.Status
	Count() int
}

type joinQuestion struct {
	Text     string `json:"text"`
	Category string `json:"category"`
}

type joinRequest struct {
	CallID        string         `json:"callId"`
	CandidateName string         `json:"candidateName"`
	JobTitle      string         `json:"jobTitle"`
	Questions     []joinQuestion `json:"questions"`
}

func registerAPIRoutes(mux *http.ServeMux, store InterviewStore, interviews InterviewService, ready func() bool) {
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			writeJSONError(w, http.StatusNotFound, "not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"service": "synchire-interview-agent",
			"status":  "running",
		})
	})

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":           "healthy",
			"service":          "synchire-interview-agent",
			"timestamp":        time.Now().UTC().Format(time.RFC3339),
			"agentInitialized": ready == nil || ready(),
			"activeInterviews": interviews.Count(),
		})
	})

	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		statuses := interviews.Statuses()
		if statuses == nil {
			statuses = []session.Status{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"activeInterviews": len(statuses),
			"interviews":       statuses,
		})
	})

	mux.HandleFunc("POST /join-interview", func(w http.ResponseWriter, r *http.Request) {
		if ready != nil && !ready() {
			writeJSONError(w, http.StatusServiceUnavailable, "agent is not configured: missing API keys")
			return
		}

		var req joinRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		if !validCallID(req.CallID) {
			writeJSONError(w, http.StatusBadRequest, "invalid call id")
			return
		}
		if strings.TrimSpace(req.CandidateName) == "" {
			writeJSONError(w, http.StatusBadRequest, "candidate name is required")
			return
		}
		// An absent job title would otherwise leak an empty string into the
		// interviewer prompt and the completion report.
		jobTitle := strings.TrimSpace(req.JobTitle)
		if jobTitle == "" {
			jobTitle = "the open position"
		}
		if len(req.Questions) == 0 {
			writeJSONError(w, http.StatusBadRequest, "at least one question is required")
			return
		}

		plan := make([]completion.Question, 0, len(req.Questions))
		for _, q := range req.Questions {
			if strings.TrimSpace(q.Text) == "" {
				writeJSONError(w, http.StatusBadRequest, "question text must not be empty")
				return
			}
			plan = append(plan, completion.Question{Text: q.Text, Category: q.Category})
		}

		err := interviews.Start(session.Request{
			CallID:        req.CallID,
			CandidateName: req.CandidateName,
			JobTitle:      jobTitle,
			Questions:     plan,
		})
		if errors.Is(err, session.ErrCallActive) {
			writeJSONError(w, http.StatusConflict, "interview already in progress for this call")
			return
		}
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("start interview: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{
			"status": "joining",
			"callId": req.CallID,
		})
	})

	mux.HandleFunc("POST /interviews/{id}/shutdown", func(w http.ResponseWriter, r *http.Request) {
		callID := r.PathValue("id")
		if !validCallID(callID) {
			writeJSONError(w, http.StatusBadRequest, "invalid call id")
			return
		}

		err := interviews.ShutdownOne(r.Context(), callID)
		if errors.Is(err, session.ErrUnknownCall) {
			writeJSONError(w, http.StatusNotFound, "no active interview for this call")
			return
		}
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("shutdown interview: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{
			"status": "shutdown",
			"callId": callID,
		})
	})

	mux.HandleFunc("GET /interviews", func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		if date == "" {
			date = time.Now().UTC().Format("2006-01-02")
		}

		list, err := store.GetInterviewsByDate(date)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list interviews: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, list)
	})

	mux.HandleFunc("GET /interviews/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if !validCallID(id) {
			writeJSONError(w, http.StatusBadRequest, "invalid call id")
			return
		}

		iv, err := store.GetInterview(id)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, sql.ErrNoRows) {
				status = http.StatusNotFound
			}
			writeJSONError(w, status, fmt.Sprintf("get interview: %v", err))
			return
		}

		entries, err := store.GetTranscript(id)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get transcript: %v", err))
			return
		}
		if entries == nil {
			entries = []transcript.Entry{}
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"interview":  iv,
			"transcript": entries,
		})
	})

	mux.HandleFunc("GET /dates", func(w http.ResponseWriter, r *http.Request) {
		dates, err := store.GetDates()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get dates: %v", err))
			return
		}
		if dates == nil {
			dates = []string{}
		}
		writeJSON(w, http.StatusOK, dates)
	})
}

func validCallID(id string) bool {
	return callIDPattern.MatchString(id)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
