// Package agent is the interviewer brain: it holds the conversation history,
// turns candidate utterances into LLM-generated replies, and speaks those
// replies into the call.
package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/synchire/interview-agent/internal/llm"
)

// Speaker voices agent replies in the call.
type Speaker interface {
	Say(ctx context.Context, text string) error
}

// Brain runs the conversational loop for one interview. Turns are
// serialized: a new candidate utterance waits for the previous reply to
// finish generating.
type Brain struct {
	client  llm.Client
	speaker Speaker
	log     logrus.FieldLogger

	mu      sync.Mutex
	history []llm.Message
}

// NewBrain seeds the conversation with the personalized system prompt.
func NewBrain(client llm.Client, speaker Speaker, instructions string, log logrus.FieldLogger) *Brain {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Brain{
		client:  client,
		speaker: speaker,
		log:     log,
		history: []llm.Message{{Role: "system", Content: instructions}},
	}
}

// Greet opens the interview. Without this nudge the agent would sit silent
// waiting for the candidate to speak first.
func (b *Brain) Greet(ctx context.Context, candidateName string) error {
	prompt := fmt.Sprintf("Start the interview now by greeting %s and asking the first question.", candidateName)
	return b.turn(ctx, prompt)
}

// OnUserSpeech feeds one finalized candidate utterance into the
// conversation and speaks the generated reply. Failures are logged and
// swallowed so a single bad turn does not kill the interview.
func (b *Brain) OnUserSpeech(ctx context.Context, text string) {
	if err := b.turn(ctx, text); err != nil {
		b.log.WithError(err).Error("conversation turn failed")
	}
}

func (b *Brain) turn(ctx context.Context, userText string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.history = append(b.history, llm.Message{Role: "user", Content: userText})

	reply, err := b.complete(ctx)
	if err != nil {
		// Drop the failed turn so retries on the next utterance start clean.
		b.history = b.history[:len(b.history)-1]
		return fmt.Errorf("generate reply: %w", err)
	}

	b.history = append(b.history, llm.Message{Role: "assistant", Content: reply})

	if err := b.speaker.Say(ctx, reply); err != nil {
		return fmt.Errorf("speak reply: %w", err)
	}
	return nil
}

// complete calls the LLM with exponential backoff. Transient provider
// errors are retried for up to 30 seconds; context cancellation stops
// immediately.
func (b *Brain) complete(ctx context.Context) (string, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxElapsedTime = 30 * time.Second

	var reply string
	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		var err error
		reply, err = b.client.Complete(ctx, b.history)
		return err
	}

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return "", err
	}
	return reply, nil
}

// History returns a copy of the conversation so far, system prompt included.
func (b *Brain) History() []llm.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]llm.Message, len(b.history))
	copy(out, b.history)
	return out
}
