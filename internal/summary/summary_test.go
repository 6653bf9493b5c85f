package summary

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/synchire/interview-agent/internal/llm"
	"github.com/synchire/interview-agent/internal/transcript"
)

type clientMock struct {
	replies  []string
	errs     []error
	received [][]llm.Message
}

func (c *clientMock) Complete(_ context.Context, messages []llm.Message) (string, error) {
	c.received = append(c.received, messages)
	if len(c.errs) > 0 {
		err := c.errs[0]
		c.errs = c.errs[1:]
		if err != nil {
			return "", err
		}
	}
	reply := c.replies[0]
	c.replies = c.replies[1:]
	return reply, nil
}

func factoryFor(c *clientMock) ClientFactory {
	return func(provider, model string) (llm.Client, error) {
		if provider != "openai" || model != "gpt-4o-mini" {
			return nil, errors.New("unexpected model")
		}
		return c, nil
	}
}

func longTranscript() []transcript.Entry {
	return []transcript.Entry{
		{Speaker: transcript.SpeakerAgent, Text: "Welcome Dana, thanks for joining today. Tell me about your recent work."},
		{Speaker: transcript.SpeakerUser, Text: "I spent the last two years leading the payments team through a large platform migration."},
		{Speaker: transcript.SpeakerAgent, Text: "Walk me through the hardest technical decision you made during that migration."},
		{Speaker: transcript.SpeakerUser, Text: "We had to choose between a dual-write strategy and a cutover weekend, and I pushed for dual writes."},
	}
}

func TestGenerateSummarizesTranscript(t *testing.T) {
	client := &clientMock{replies: []string{"Strong candidate with clear migration experience."}}
	gen := New("openai/gpt-4o-mini", factoryFor(client))
	gen.sleep = func(time.Duration) {}

	got, err := gen.Generate(context.Background(), "Dana", "Backend Engineer", longTranscript())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if got != "Strong candidate with clear migration experience." {
		t.Fatalf("unexpected summary %q", got)
	}

	if len(client.received) != 1 {
		t.Fatalf("expected one completion call, got %d", len(client.received))
	}
	user := client.received[0][1].Content
	for _, want := range []string{"Candidate: Dana", "Position: Backend Engineer", "agent: Welcome Dana"} {
		if !strings.Contains(user, want) {
			t.Fatalf("prompt missing %q:\n%s", want, user)
		}
	}
}

func TestGenerateSkipsShortTranscripts(t *testing.T) {
	client := &clientMock{}
	gen := New("openai/gpt-4o-mini", factoryFor(client))

	got, err := gen.Generate(context.Background(), "Dana", "Backend Engineer", []transcript.Entry{
		{Speaker: transcript.SpeakerUser, Text: "Hello."},
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if got != "" {
		t.Fatalf("expected empty summary, got %q", got)
	}
	if len(client.received) != 0 {
		t.Fatal("short transcript should not reach the LLM")
	}
}

func TestGenerateRetriesThenSucceeds(t *testing.T) {
	client := &clientMock{
		errs:    []error{errors.New("overloaded"), errors.New("overloaded")},
		replies: []string{"Recovered summary."},
	}
	gen := New("openai/gpt-4o-mini", factoryFor(client))

	var slept []time.Duration
	gen.sleep = func(d time.Duration) { slept = append(slept, d) }

	got, err := gen.Generate(context.Background(), "Dana", "Backend Engineer", longTranscript())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if got != "Recovered summary." {
		t.Fatalf("unexpected summary %q", got)
	}
	if len(slept) != 2 {
		t.Fatalf("expected 2 backoff sleeps, got %v", slept)
	}
}

func TestGenerateFailsAfterRetries(t *testing.T) {
	client := &clientMock{errs: []error{errors.New("down"), errors.New("down"), errors.New("down")}}
	gen := New("openai/gpt-4o-mini", factoryFor(client))
	gen.sleep = func(time.Duration) {}

	_, err := gen.Generate(context.Background(), "Dana", "Backend Engineer", longTranscript())
	if err == nil || !strings.Contains(err.Error(), "after retries") {
		t.Fatalf("expected retry exhaustion error, got %v", err)
	}
}
