// Package notify delivers the interview-complete webhook to the hiring
// platform. Delivery is deliberately fire-and-forget: the receiving side
// reconciles missed reports from storage, so a failed POST is logged, never
// retried.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/synchire/interview-agent/internal/transcript"
)

// Report is the completion payload.
type Report struct {
	InterviewID     string             `json:"interviewId"`
	CandidateName   string             `json:"candidateName"`
	JobTitle        string             `json:"jobTitle"`
	DurationMinutes float64            `json:"durationMinutes"`
	CompletedAt     string             `json:"completedAt"`
	Status          string             `json:"status"`
	Summary         string             `json:"summary,omitempty"`
	Transcript      []transcript.Entry `json:"transcript"`
}

// NewReport assembles a completion report. Duration is rounded to two
// decimal places and completedAt is RFC 3339 in UTC.
func NewReport(interviewID, candidateName, jobTitle string, durationMinutes float64, completedAt time.Time, summary string, entries []transcript.Entry) Report {
	if entries == nil {
		entries = []transcript.Entry{}
	}
	return Report{
		InterviewID:     interviewID,
		CandidateName:   candidateName,
		JobTitle:        jobTitle,
		DurationMinutes: math.Round(durationMinutes*100) / 100,
		CompletedAt:     completedAt.UTC().Format(time.RFC3339),
		Status:          "completed",
		Summary:         summary,
		Transcript:      entries,
	}
}

// Webhook posts completion reports to one base URL.
type Webhook struct {
	baseURL string
	client  *http.Client
	log     logrus.FieldLogger
}

func NewWebhook(baseURL string, log logrus.FieldLogger) *Webhook {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Webhook{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     log,
	}
}

// Send posts the report to /api/webhooks/interview-complete. One attempt
// only.
func (w *Webhook) Send(ctx context.Context, report Report) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal completion report: %w", err)
	}

	url := w.baseURL + "/api/webhooks/interview-complete"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send completion webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("completion webhook rejected: status %d", resp.StatusCode)
	}

	w.log.WithField("interview_id", report.InterviewID).Info("completion webhook delivered")
	return nil
}
