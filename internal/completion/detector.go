// Package completion decides when an interview has reached its natural end.
//
// Neither party sends an explicit end-of-call signal: the agent is an
// autonomous conversational process whose closing words are not scriptable,
// and the candidate may not say anything conclusive at all. The detector
// layers three weak signals (closing phrases, a question quota, elapsed
// time) under a mandatory timeout so the decision always terminates.
package completion

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds how long a caller will wait for completion.
const DefaultTimeout = 15 * time.Minute

// Question is one entry of the interview plan, in the order the agent is
// expected to ask.
type Question struct {
	Text     string
	Category string
}

// ProgressNotifier receives a notification each time the agent is heard
// asking the next planned question. Delivery is best-effort.
type ProgressNotifier interface {
	NotifyProgress(questionIndex int, category string, totalQuestions int) error
}

// Phrases the agent uses when wrapping up.
var closingKeywords = []string{
	"goodbye", "good bye", "bye",
	"luck", "best wishes",
	"thank you for your time", "thanks for sharing",
	"we'll be in touch", "be in touch",
	"that concludes", "wraps up",
}

// Markers that an agent utterance poses a question. A matching table, not
// an NLP model; the quota check carries one question of slack to absorb
// the undercount.
var questionIndicators = []string{
	"tell me about", "can you explain", "what about",
	"how did you", "why did you", "describe",
	"walk me through", "what was your", "?",
}

// Detector consumes the live speech event stream of one interview and
// raises a one-shot completion signal. Events must be delivered in arrival
// order; each is processed synchronously.
type Detector struct {
	plan            []Question
	minimumDuration time.Duration
	notifier        ProgressNotifier
	log             logrus.FieldLogger
	now             func() time.Time

	mu                sync.Mutex
	startedAt         time.Time
	questionsAsked    int
	planIndex         int
	closingPhrases    []string
	lastAgentSpeechAt time.Time
	onComplete        func()
	completed         bool
	reason            string
	done              chan struct{}
}

// NewDetector builds a detector for the given plan. The expected question
// count is the plan length; minimumDuration gates the elapsed-time signal.
// notifier may be nil.
func NewDetector(plan []Question, minimumDuration time.Duration, notifier ProgressNotifier, log logrus.FieldLogger) *Detector {
	if log == nil {
		log = logrus.StandardLogger()
	}
	d := &Detector{
		plan:            plan,
		minimumDuration: minimumDuration,
		notifier:        notifier,
		log:             log,
		now:             time.Now,
		done:            make(chan struct{}),
	}
	d.startedAt = d.now()
	return d
}

// OnComplete registers the callback invoked exactly once, synchronously
// within the event-handling path that first signals completion.
func (d *Detector) OnComplete(cb func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onComplete = cb
}

type progressMatch struct {
	index    int
	category string
	total    int
}

// OnAgentSpeech processes one agent transcription event: counts question
// indicators, matches progress against the next planned question, and runs
// the completion check on closing phrases.
func (d *Detector) OnAgentSpeech(text string, at time.Time) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return
	}

	d.mu.Lock()
	d.lastAgentSpeechAt = at

	if containsAny(normalized, questionIndicators) {
		d.questionsAsked++
		d.log.WithFields(logrus.Fields{"asked": d.questionsAsked, "expected": len(d.plan)}).Debug("question counted")
	}

	// Progress matching is independent of the question counter; the two can
	// disagree and are never reconciled.
	var progress *progressMatch
	if d.planIndex < len(d.plan) && questionMatches(normalized, d.plan[d.planIndex].Text) {
		progress = &progressMatch{
			index:    d.planIndex,
			category: d.plan[d.planIndex].Category,
			total:    len(d.plan),
		}
		d.planIndex++
	}

	shouldComplete := false
	var reason string
	if containsAny(normalized, closingKeywords) {
		d.closingPhrases = append(d.closingPhrases, strings.TrimSpace(text))
		d.log.WithField("phrase", strings.TrimSpace(text)).Info("agent used closing phrase")
		shouldComplete, reason = d.evaluateLocked()
	}
	d.mu.Unlock()

	if progress != nil && d.notifier != nil {
		if err := d.notifier.NotifyProgress(progress.index, progress.category, progress.total); err != nil {
			d.log.WithError(err).Warn("progress notification failed")
		}
	}

	if shouldComplete {
		d.complete(reason)
	}
}

// OnUserSpeech processes one candidate transcription event. A candidate
// farewell ends the interview immediately, bypassing the quota and time
// gates entirely.
func (d *Detector) OnUserSpeech(text string, _ time.Time) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if strings.Contains(normalized, "goodbye") || strings.Contains(normalized, "bye") {
		d.log.WithField("text", strings.TrimSpace(text)).Info("candidate said goodbye")
		d.complete("user said goodbye")
	}
}

// Wait blocks until the completion signal fires, the timeout elapses, or
// ctx is canceled. On timeout the detector force-completes with a timeout
// reason and Wait returns nil, so a session's lifetime is always bounded.
// Only cancellation surfaces as an error.
func (d *Detector) Wait(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-d.done:
		return nil
	case <-timer.C:
		d.complete(fmt.Sprintf("timeout after %.1f minutes", timeout.Minutes()))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Completed reports whether the one-shot signal has fired.
func (d *Detector) Completed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.completed
}

// Reason returns the human-readable completion reason, empty until the
// signal fires.
func (d *Detector) Reason() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reason
}

// QuestionsAsked returns the question-indicator counter.
func (d *Detector) QuestionsAsked() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.questionsAsked
}

// CurrentQuestionIndex returns how far the progress matcher has advanced
// through the plan.
func (d *Detector) CurrentQuestionIndex() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.planIndex
}

// StartedAt returns when the detector was created.
func (d *Detector) StartedAt() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.startedAt
}

// DurationMinutes returns minutes elapsed since the interview started.
func (d *Detector) DurationMinutes() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.now().Sub(d.startedAt).Minutes()
}

// evaluateLocked runs the completion decision. Caller holds d.mu.
// Completion requires a closing phrase plus either the question quota
// (with one question of slack) or the minimum elapsed time.
func (d *Detector) evaluateLocked() (bool, string) {
	duration := d.now().Sub(d.startedAt)

	hasClosing := len(d.closingPhrases) > 0
	enoughQuestions := d.questionsAsked >= len(d.plan)-1
	enoughTime := duration >= d.minimumDuration

	if !hasClosing || (!enoughQuestions && !enoughTime) {
		return false, ""
	}

	parts := []string{"agent said goodbye"}
	if enoughQuestions {
		parts = append(parts, fmt.Sprintf("asked %d questions", d.questionsAsked))
	}
	if enoughTime {
		parts = append(parts, fmt.Sprintf("%.1f min duration", duration.Minutes()))
	}
	return true, strings.Join(parts, ", ")
}

// complete latches the one-shot signal. First call wins; every later call
// is a no-op. The registered callback runs synchronously, once, outside
// the lock.
func (d *Detector) complete(reason string) {
	d.mu.Lock()
	if d.completed {
		d.mu.Unlock()
		return
	}
	d.completed = true
	d.reason = reason
	cb := d.onComplete
	close(d.done)
	d.mu.Unlock()

	d.log.WithField("reason", reason).Info("interview marked complete")
	if cb != nil {
		cb()
	}
}

func containsAny(normalized string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(normalized, kw) {
			return true
		}
	}
	return false
}

// questionMatches tests an agent utterance against a planned question. The
// agent paraphrases rather than reciting, so exact matching would
// systematically under-match: instead any 3-consecutive-word window from
// the first ~50 characters of the plan text counts as a match.
func questionMatches(normalizedUtterance, planned string) bool {
	prefix := strings.ToLower(strings.TrimSpace(planned))
	if len(prefix) > 50 {
		cut := 50
		for cut > 0 && !utf8.RuneStart(prefix[cut]) {
			cut--
		}
		prefix = prefix[:cut]
	}

	words := strings.Fields(prefix)
	if len(words) < 3 {
		return prefix != "" && strings.Contains(normalizedUtterance, prefix)
	}

	for i := 0; i+3 <= len(words); i++ {
		window := strings.Join(words[i:i+3], " ")
		if strings.Contains(normalizedUtterance, window) {
			return true
		}
	}
	return false
}
