package server

import (
	"encoding/json"
	"testing"

	"github.com/synchire/interview-agent/internal/transcript"
)

func TestHubBroadcastReachesSubscribers(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	hub.BroadcastTranscript("call-1", transcript.Entry{
		Speaker:   transcript.SpeakerUser,
		Text:      "I led the migration.",
		Timestamp: 42.5,
	})

	select {
	case msg := <-ch:
		var e TranscriptEvent
		if err := json.Unmarshal(msg, &e); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		if e.Type != "transcript" || e.CallID != "call-1" || e.Speaker != "user" || e.Offset != 42.5 {
			t.Fatalf("unexpected event %+v", e)
		}
	default:
		t.Fatal("expected a broadcast message")
	}
}

func TestHubSlowClientDoesNotBlock(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	// Fill the client buffer past capacity; broadcasts must not block.
	for i := 0; i < 200; i++ {
		hub.BroadcastProgress("call-1", i, "technical", 10)
	}

	if len(ch) != cap(ch) {
		t.Fatalf("expected full buffer of %d, got %d", cap(ch), len(ch))
	}
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe()
	hub.Unsubscribe(ch)

	if _, open := <-ch; open {
		t.Fatal("channel should be closed after Unsubscribe")
	}

	// Broadcast after unsubscribe must not panic.
	hub.BroadcastInterviewCompleted("call-1", "agent said goodbye", 10.5, 4)
}
