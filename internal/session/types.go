package session

import (
	"context"
	"time"

	"github.com/synchire/interview-agent/internal/completion"
	"github.com/synchire/interview-agent/internal/notify"
	"github.com/synchire/interview-agent/internal/platform"
	"github.com/synchire/interview-agent/internal/storage"
	"github.com/synchire/interview-agent/internal/transcript"
)

// Request describes one interview to run.
type Request struct {
	CallID        string
	CandidateName string
	JobTitle      string
	Questions     []completion.Question
}

// State is the lifecycle phase of one interview session.
type State string

const (
	StateCreated    State = "created"
	StateJoined     State = "joined"
	StateRunning    State = "running"
	StateCompleting State = "completing"
	StateTerminated State = "terminated"
)

// Status is a point-in-time snapshot of one session, served by the status
// endpoints.
type Status struct {
	CallID               string  `json:"callId"`
	CandidateName        string  `json:"candidateName"`
	JobTitle             string  `json:"jobTitle"`
	State                State   `json:"state"`
	QuestionsAsked       int     `json:"questionsAsked"`
	CurrentQuestionIndex int     `json:"currentQuestionIndex"`
	TotalQuestions       int     `json:"totalQuestions"`
	DurationMinutes      float64 `json:"durationMinutes"`
	Completed            bool    `json:"completed"`
	Reason               string  `json:"reason,omitempty"`
}

// Session is what the registry tracks: something that can be cancelled,
// waited on, and inspected.
type Session interface {
	Cancel()
	Done() <-chan struct{}
	Status() Status
}

// Brain is the conversational side of the interviewer.
type Brain interface {
	Greet(ctx context.Context, candidateName string) error
	OnUserSpeech(ctx context.Context, text string)
}

// SpeechSink receives finalized candidate utterances from the
// transcription backend.
type SpeechSink interface {
	OnUserSpeech(text string, at time.Time)
}

// AudioTranscriber consumes candidate audio and emits user speech events.
type AudioTranscriber interface {
	WriteAudio(frame []byte) error
	Close() error
}

// Avatar is an optional video presence for the interviewer. Start may fail
// when the provider is out of session slots; the interview then continues
// audio-only.
type Avatar interface {
	Start(ctx context.Context) error
	Close(ctx context.Context) error
}

type RoomFactory interface {
	Room(callID string) platform.Room
}

type Store interface {
	SaveInterview(iv storage.Interview, entries []transcript.Entry) error
}

type Notifier interface {
	Send(ctx context.Context, report notify.Report) error
}

type Summarizer interface {
	Generate(ctx context.Context, candidateName, jobTitle string, entries []transcript.Entry) (string, error)
}

type Archiver interface {
	UploadReport(ctx context.Context, report notify.Report) error
}

type EventBroadcaster interface {
	BroadcastInterviewStarted(callID, candidateName, jobTitle string, totalQuestions int)
	BroadcastTranscript(callID string, e transcript.Entry)
	BroadcastProgress(callID string, questionIndex int, category string, totalQuestions int)
	BroadcastInterviewCompleted(callID, reason string, durationMinutes float64, questionsAsked int)
}
