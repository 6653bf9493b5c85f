package server

import "time"

const EventVersion = 1

type Event struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Timestamp string `json:"timestamp"`
}

type InterviewStartedEvent struct {
	Event
	CallID         string `json:"call_id"`
	CandidateName  string `json:"candidate_name"`
	JobTitle       string `json:"job_title"`
	TotalQuestions int    `json:"total_questions"`
}

type TranscriptEvent struct {
	Event
	CallID  string  `json:"call_id"`
	Speaker string  `json:"speaker"`
	Text    string  `json:"text"`
	Offset  float64 `json:"offset"`
}

type ProgressEvent struct {
	Event
	CallID         string `json:"call_id"`
	QuestionIndex  int    `json:"question_index"`
	Category       string `json:"category"`
	TotalQuestions int    `json:"total_questions"`
}

type InterviewCompletedEvent struct {
	Event
	CallID          string  `json:"call_id"`
	Reason          string  `json:"reason"`
	DurationMinutes float64 `json:"duration_minutes"`
	QuestionsAsked  int     `json:"questions_asked"`
}

type ConnectionEvent struct {
	Event
	Connected bool `json:"connected"`
}

func newEvent(eventType string, now time.Time) Event {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Event{
		Type:      eventType,
		Version:   EventVersion,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}
