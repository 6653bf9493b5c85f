// Package stt transcribes the candidate audio channel. The edge delivers
// raw audio frames; Deepgram's live websocket turns them into user speech
// events for the completion heuristic and the transcript.
package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/sirupsen/logrus"
)

// Handler receives finalized candidate utterances.
type Handler interface {
	OnUserSpeech(text string, at time.Time)
}

// Init prepares the Deepgram client library. Call once at process start.
func Init() {
	client.Init(client.InitLib{LogLevel: client.LogLevelDefault})
}

type liveClient interface {
	io.Writer
	Connect() bool
	Stop()
}

// Transcriber is one live Deepgram connection for one interview.
type Transcriber struct {
	client liveClient
	log    logrus.FieldLogger
}

// New opens a live transcription connection. The handler is invoked
// synchronously from the Deepgram read goroutine as utterances finalize.
func New(ctx context.Context, apiKey string, sampleRate int, language string, h Handler, log logrus.FieldLogger) (*Transcriber, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	cOptions := &interfaces.ClientOptions{EnableKeepAlive: true}
	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:       "nova-2",
		Language:    language,
		Punctuate:   true,
		SmartFormat: true,
		Encoding:    "linear16",
		SampleRate:  sampleRate,
		Channels:    1,
	}

	dg, err := client.NewWSUsingCallback(ctx, apiKey, cOptions, tOptions, newCallback(h, log))
	if err != nil {
		return nil, fmt.Errorf("create deepgram client: %w", err)
	}
	if ok := dg.Connect(); !ok {
		return nil, errors.New("deepgram connect failed")
	}

	return &Transcriber{client: dg, log: log}, nil
}

// WriteAudio forwards one candidate audio frame to Deepgram.
func (t *Transcriber) WriteAudio(frame []byte) error {
	if _, err := t.client.Write(frame); err != nil {
		return fmt.Errorf("write audio to deepgram: %w", err)
	}
	return nil
}

// Close tears down the live connection.
func (t *Transcriber) Close() error {
	t.client.Stop()
	return nil
}

// callback adapts Deepgram's event callbacks into user speech events.
// Finalized fragments are buffered until speech_final marks the utterance
// complete.
type callback struct {
	handler Handler
	log     logrus.FieldLogger

	mu      sync.Mutex
	pending []string
}

func newCallback(h Handler, log logrus.FieldLogger) *callback {
	return &callback{handler: h, log: log}
}

func (c *callback) Message(mr *api.MessageResponse) error {
	if len(mr.Channel.Alternatives) == 0 {
		return nil
	}

	sentence := strings.TrimSpace(mr.Channel.Alternatives[0].Transcript)
	if sentence == "" || !mr.IsFinal {
		return nil
	}

	c.mu.Lock()
	c.pending = append(c.pending, sentence)
	c.mu.Unlock()

	if mr.SpeechFinal {
		c.flush()
	}
	return nil
}

func (c *callback) UtteranceEnd(*api.UtteranceEndResponse) error {
	c.flush()
	return nil
}

func (c *callback) flush() {
	c.mu.Lock()
	if len(c.pending) == 0 {
		c.mu.Unlock()
		return
	}
	utterance := strings.Join(c.pending, " ")
	c.pending = nil
	c.mu.Unlock()

	if c.handler != nil {
		c.handler.OnUserSpeech(utterance, time.Now())
	}
}

func (c *callback) Open(*api.OpenResponse) error {
	c.log.Debug("connected to Deepgram")
	return nil
}

func (c *callback) Metadata(*api.MetadataResponse) error { return nil }

func (c *callback) SpeechStarted(*api.SpeechStartedResponse) error { return nil }

func (c *callback) Close(*api.CloseResponse) error {
	c.log.Debug("disconnected from Deepgram")
	return nil
}

func (c *callback) Error(er *api.ErrorResponse) error {
	c.log.WithFields(logrus.Fields{"code": er.ErrCode, "description": er.Description}).Warn("deepgram error")
	return nil
}

func (c *callback) UnhandledEvent([]byte) error { return nil }
