// Package summary turns a finished interview transcript into a short
// hiring-oriented writeup for the recruiting team.
package summary

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/synchire/interview-agent/internal/llm"
	"github.com/synchire/interview-agent/internal/transcript"
)

const systemPrompt = `You are an interview analyst. Summarize the interview
transcript for the hiring team: the candidate's strongest answers, any gaps
or concerns, and communication quality. Be concise and factual. Do not
invent details that are not in the transcript.`

type ClientFactory func(provider, model string) (llm.Client, error)

// Generator produces post-interview summaries.
type Generator struct {
	model   string
	factory ClientFactory
	sleep   func(time.Duration)
}

// New builds a generator that summarizes with the given "provider/model".
func New(model string, factory ClientFactory) *Generator {
	return &Generator{
		model:   model,
		factory: factory,
		sleep:   time.Sleep,
	}
}

// Generate summarizes the transcript. Transcripts under 20 words produce an
// empty summary without calling the LLM.
func (g *Generator) Generate(ctx context.Context, candidateName, jobTitle string, entries []transcript.Entry) (string, error) {
	text := Format(entries)
	if len(strings.Fields(text)) < 20 {
		return "", nil
	}

	provider, model, err := llm.ParseModel(g.model)
	if err != nil {
		return "", err
	}

	client, err := g.factory(provider, model)
	if err != nil {
		return "", fmt.Errorf("create llm client: %w", err)
	}

	userContent := fmt.Sprintf("Candidate: %s\nPosition: %s\n\nTranscript:\n%s", candidateName, jobTitle, text)
	messages := []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userContent},
	}

	backoff := []time.Duration{1 * time.Second, 4 * time.Second, 16 * time.Second}
	var lastErr error
	for attempt := range backoff {
		result, err := client.Complete(ctx, messages)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if attempt < len(backoff)-1 {
			g.sleep(backoff[attempt])
		}
	}
	return "", fmt.Errorf("summarize failed after retries: %w", lastErr)
}

// Format renders transcript entries as speaker-prefixed lines.
func Format(entries []transcript.Entry) string {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s: %s\n", e.Speaker, e.Text)
	}
	return strings.TrimSpace(b.String())
}
