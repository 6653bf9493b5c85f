package stt

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
)

type handlerMock struct {
	mu         sync.Mutex
	utterances []string
}

func (h *handlerMock) OnUserSpeech(text string, _ time.Time) {
	h.mu.Lock()
	h.utterances = append(h.utterances, text)
	h.mu.Unlock()
}

func message(t *testing.T, transcript string, isFinal, speechFinal bool) *api.MessageResponse {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"is_final":     isFinal,
		"speech_final": speechFinal,
		"channel": map[string]any{
			"alternatives": []map[string]any{{"transcript": transcript}},
		},
	})
	if err != nil {
		t.Fatalf("marshal message: %v", err)
	}

	var mr api.MessageResponse
	if err := json.Unmarshal(raw, &mr); err != nil {
		t.Fatalf("unmarshal message: %v", err)
	}
	return &mr
}

func TestCallbackBuffersUntilSpeechFinal(t *testing.T) {
	h := &handlerMock{}
	cb := newCallback(h, nil)

	if err := cb.Message(message(t, "I worked on", true, false)); err != nil {
		t.Fatalf("Message failed: %v", err)
	}

	h.mu.Lock()
	if len(h.utterances) != 0 {
		t.Fatalf("expected no utterance before speech_final, got %v", h.utterances)
	}
	h.mu.Unlock()

	if err := cb.Message(message(t, "the billing system.", true, true)); err != nil {
		t.Fatalf("Message failed: %v", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.utterances) != 1 || h.utterances[0] != "I worked on the billing system." {
		t.Fatalf("unexpected utterances %v", h.utterances)
	}
}

func TestCallbackIgnoresInterimAndEmpty(t *testing.T) {
	h := &handlerMock{}
	cb := newCallback(h, nil)

	_ = cb.Message(message(t, "partial guess", false, false))
	_ = cb.Message(message(t, "   ", true, true))

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.utterances) != 0 {
		t.Fatalf("expected nothing forwarded, got %v", h.utterances)
	}
}

func TestUtteranceEndFlushesPending(t *testing.T) {
	h := &handlerMock{}
	cb := newCallback(h, nil)

	_ = cb.Message(message(t, "short answer", true, false))
	if err := cb.UtteranceEnd(&api.UtteranceEndResponse{}); err != nil {
		t.Fatalf("UtteranceEnd failed: %v", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.utterances) != 1 || h.utterances[0] != "short answer" {
		t.Fatalf("unexpected utterances %v", h.utterances)
	}

	// Nothing pending: a second flush is a no-op.
	h.mu.Unlock()
	_ = cb.UtteranceEnd(&api.UtteranceEndResponse{})
	h.mu.Lock()
	if len(h.utterances) != 1 {
		t.Fatalf("expected no duplicate flush, got %v", h.utterances)
	}
}
