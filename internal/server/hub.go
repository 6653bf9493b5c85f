package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/synchire/interview-agent/internal/transcript"
)

// Hub fans live interview events out to monitor websocket clients. Slow
// clients drop messages rather than block the broadcast path.
type Hub struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan []byte]struct{})}
}

func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (h *Hub) BroadcastInterviewStarted(callID, candidateName, jobTitle string, totalQuestions int) {
	h.broadcastEvent(InterviewStartedEvent{
		Event:          newEvent("interview_started", time.Now().UTC()),
		CallID:         callID,
		CandidateName:  candidateName,
		JobTitle:       jobTitle,
		TotalQuestions: totalQuestions,
	})
}

func (h *Hub) BroadcastTranscript(callID string, e transcript.Entry) {
	h.broadcastEvent(TranscriptEvent{
		Event:   newEvent("transcript", time.Now().UTC()),
		CallID:  callID,
		Speaker: string(e.Speaker),
		Text:    e.Text,
		Offset:  e.Timestamp,
	})
}

func (h *Hub) BroadcastProgress(callID string, questionIndex int, category string, totalQuestions int) {
	h.broadcastEvent(ProgressEvent{
		Event:          newEvent("progress", time.Now().UTC()),
		CallID:         callID,
		QuestionIndex:  questionIndex,
		Category:       category,
		TotalQuestions: totalQuestions,
	})
}

func (h *Hub) BroadcastInterviewCompleted(callID, reason string, durationMinutes float64, questionsAsked int) {
	h.broadcastEvent(InterviewCompletedEvent{
		Event:           newEvent("interview_completed", time.Now().UTC()),
		CallID:          callID,
		Reason:          reason,
		DurationMinutes: durationMinutes,
		QuestionsAsked:  questionsAsked,
	})
}

func (h *Hub) broadcastEvent(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("event marshal error: %v", err)
		return
	}
	h.Broadcast(payload)
}
