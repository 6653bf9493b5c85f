// Package platform binds to the realtime call edge. One Room is the slice
// of the platform a single interview session uses: join/leave, the speech
// event stream, agent speech, and small out-of-band custom events to call
// participants.
package platform

import (
	"context"
	"time"
)

// Handler receives speech transcription events for one room. Calls are made
// synchronously from the event-delivery goroutine, in arrival order.
type Handler interface {
	OnAgentSpeech(text string, at time.Time)
	OnUserSpeech(text string, at time.Time)
}

// AudioSink consumes raw candidate audio frames delivered by the edge,
// typically piping them to a speech-to-text backend.
type AudioSink interface {
	WriteAudio(frame []byte) error
}

// Room is one call on the platform.
type Room interface {
	Join(ctx context.Context) error
	Leave() error
	// Say has the agent speak the given text in the call.
	Say(ctx context.Context, text string) error
	// SendCustomEvent delivers a small out-of-band event to call
	// participants (transcript and progress notifications).
	SendCustomEvent(eventType string, payload any) error
	Subscribe(h Handler)
	SetAudioSink(sink AudioSink)
}
