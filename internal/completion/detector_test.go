package completion

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

func fiveQuestionPlan() []Question {
	return []Question{
		{Text: "Tell me about yourself and your background", Category: "Introduction"},
		{Text: "What was your biggest technical challenge last year", Category: "Technical Skills"},
		{Text: "How did you handle a disagreement with a teammate", Category: "Collaboration"},
		{Text: "Walk me through a project you are proud of", Category: "Experience"},
		{Text: "Why did you apply for this position", Category: "Motivation"},
	}
}

// setClock pins the detector's clock to startedAt+delta.
func setClock(d *Detector, delta time.Duration) {
	d.mu.Lock()
	start := d.startedAt
	d.now = func() time.Time { return start.Add(delta) }
	d.mu.Unlock()
}

func askQuestions(d *Detector, n int) {
	for i := 0; i < n; i++ {
		d.OnAgentSpeech(fmt.Sprintf("here is question number %d, are you ready?", i+1), time.Now())
	}
}

func TestNoClosingPhraseNeverCompletes(t *testing.T) {
	d := NewDetector(fiveQuestionPlan(), 0, nil, nil)

	askQuestions(d, 20)
	setClock(d, time.Hour)
	askQuestions(d, 5)

	if d.Completed() {
		t.Fatalf("expected no completion without a closing phrase, reason %q", d.Reason())
	}
}

func TestClosingWithEnoughQuestionsCompletes(t *testing.T) {
	d := NewDetector(fiveQuestionPlan(), 3*time.Minute, nil, nil)

	// 4 questions asked against 5 expected: inside the one-question slack.
	askQuestions(d, 4)
	setClock(d, time.Minute)

	d.OnAgentSpeech("Thank you for your time, we'll be in touch.", time.Now())

	if !d.Completed() {
		t.Fatal("expected completion via question quota")
	}
	reason := d.Reason()
	if !strings.Contains(reason, "agent said goodbye") || !strings.Contains(reason, "asked 4 questions") {
		t.Fatalf("unexpected reason %q", reason)
	}
	if strings.Contains(reason, "min duration") {
		t.Fatalf("duration signal should not hold at 1 minute, reason %q", reason)
	}
}

func TestClosingWithTooFewQuestionsAndTooLittleTime(t *testing.T) {
	d := NewDetector(fiveQuestionPlan(), 3*time.Minute, nil, nil)

	askQuestions(d, 2)
	setClock(d, time.Minute)

	d.OnAgentSpeech("goodbye and best wishes", time.Now())

	if d.Completed() {
		t.Fatalf("expected no completion at 2 questions and 1 minute, reason %q", d.Reason())
	}
}

func TestClosingWithEnoughTimeCompletes(t *testing.T) {
	d := NewDetector(fiveQuestionPlan(), 3*time.Minute, nil, nil)

	askQuestions(d, 2)
	setClock(d, 3*time.Minute+30*time.Second)

	d.OnAgentSpeech("that concludes our conversation", time.Now())

	if !d.Completed() {
		t.Fatal("expected completion via elapsed time")
	}
	if !strings.Contains(d.Reason(), "3.5 min duration") {
		t.Fatalf("expected duration in reason, got %q", d.Reason())
	}
}

func TestUserGoodbyeCompletesImmediately(t *testing.T) {
	d := NewDetector(fiveQuestionPlan(), 3*time.Minute, nil, nil)

	d.OnUserSpeech("ok bye", time.Now())

	if !d.Completed() {
		t.Fatal("expected immediate completion on candidate farewell")
	}
	if d.Reason() != "user said goodbye" {
		t.Fatalf("unexpected reason %q", d.Reason())
	}
	if d.QuestionsAsked() != 0 {
		t.Fatalf("expected zero questions asked, got %d", d.QuestionsAsked())
	}
}

func TestCompletionLatchFiresCallbackOnce(t *testing.T) {
	d := NewDetector(fiveQuestionPlan(), 0, nil, nil)

	var mu sync.Mutex
	calls := 0
	d.OnComplete(func() {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	d.OnUserSpeech("goodbye", time.Now())
	d.OnUserSpeech("goodbye again", time.Now())
	d.OnAgentSpeech("goodbye, thanks for sharing", time.Now())

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected callback to fire exactly once, got %d", calls)
	}
	if d.Reason() != "user said goodbye" {
		t.Fatalf("first signal should win, got reason %q", d.Reason())
	}
}

type progressRecorder struct {
	mu      sync.Mutex
	indexes []int
	cats    []string
	total   int
	err     error
}

func (p *progressRecorder) NotifyProgress(index int, category string, total int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.indexes = append(p.indexes, index)
	p.cats = append(p.cats, category)
	p.total = total
	return p.err
}

func TestProgressAdvanceIsMonotonicAndCapped(t *testing.T) {
	plan := fiveQuestionPlan()
	recorder := &progressRecorder{}
	d := NewDetector(plan, 3*time.Minute, recorder, nil)

	// Paraphrased versions of every planned question, plus two extras.
	utterances := []string{
		"let's start: tell me about yourself and what drew you here",
		"great. what was your biggest technical challenge recently?",
		"interesting. how did you handle a disagreement with someone?",
		"could you walk me through a project you are especially proud of?",
		"and finally, why did you apply for this role?",
		"anything else you'd like to add?",
		"one more follow-up question for you?",
	}
	for _, u := range utterances {
		d.OnAgentSpeech(u, time.Now())
	}

	if got := d.CurrentQuestionIndex(); got != len(plan) {
		t.Fatalf("expected index capped at %d, got %d", len(plan), got)
	}

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if len(recorder.indexes) != len(plan) {
		t.Fatalf("expected %d progress notifications, got %d", len(plan), len(recorder.indexes))
	}
	for i, idx := range recorder.indexes {
		if idx != i {
			t.Fatalf("expected notification %d to carry index %d, got %d", i, i, idx)
		}
	}
	if recorder.cats[1] != "Technical Skills" {
		t.Fatalf("expected category of second question, got %q", recorder.cats[1])
	}
	if recorder.total != len(plan) {
		t.Fatalf("expected total %d, got %d", len(plan), recorder.total)
	}
}

func TestProgressAndQuestionCounterAreIndependent(t *testing.T) {
	d := NewDetector(fiveQuestionPlan(), 3*time.Minute, nil, nil)

	// Matches the first planned question but contains no question indicator.
	d.OnAgentSpeech("tell me about yourself", time.Now())
	if d.CurrentQuestionIndex() != 1 {
		t.Fatalf("expected progress advance, got %d", d.CurrentQuestionIndex())
	}
	if d.QuestionsAsked() != 1 {
		// "tell me about" is also an indicator here, so both move. Feed one
		// that only the counter sees.
		t.Fatalf("expected 1 question counted, got %d", d.QuestionsAsked())
	}

	d.OnAgentSpeech("and why is that?", time.Now())
	if d.QuestionsAsked() != 2 {
		t.Fatalf("expected counter to advance alone, got %d", d.QuestionsAsked())
	}
	if d.CurrentQuestionIndex() != 1 {
		t.Fatalf("expected progress to hold at 1, got %d", d.CurrentQuestionIndex())
	}
}

func TestProgressNotifierFailureIsSwallowed(t *testing.T) {
	recorder := &progressRecorder{err: fmt.Errorf("channel down")}
	d := NewDetector(fiveQuestionPlan(), 0, recorder, nil)

	d.OnAgentSpeech("tell me about yourself and your background", time.Now())

	if d.CurrentQuestionIndex() != 1 {
		t.Fatalf("expected advance despite notifier failure, got %d", d.CurrentQuestionIndex())
	}
}

func TestWaitTimesOutAndForcesCompletion(t *testing.T) {
	d := NewDetector(fiveQuestionPlan(), 3*time.Minute, nil, nil)

	start := time.Now()
	if err := d.Wait(context.Background(), 100*time.Millisecond); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond || elapsed > time.Second {
		t.Fatalf("expected Wait to return around the timeout, took %s", elapsed)
	}

	if !d.Completed() {
		t.Fatal("expected forced completion on timeout")
	}
	if !strings.Contains(d.Reason(), "timeout") {
		t.Fatalf("expected timeout reason, got %q", d.Reason())
	}
}

func TestWaitReturnsPromptlyWhenAlreadyComplete(t *testing.T) {
	d := NewDetector(fiveQuestionPlan(), 0, nil, nil)
	d.OnUserSpeech("goodbye", time.Now())

	done := make(chan error, 1)
	go func() { done <- d.Wait(context.Background(), time.Hour) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Wait failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("expected immediate return for a late waiter")
	}
}

func TestWaitCancellation(t *testing.T) {
	d := NewDetector(fiveQuestionPlan(), 3*time.Minute, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Wait(ctx, time.Hour) }()

	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected cancellation error")
		}
	case <-time.After(time.Second):
		t.Fatal("expected Wait to return on cancellation")
	}

	if d.Completed() {
		t.Fatal("cancellation must not force completion")
	}
}

func TestQuestionMatchesParaphrase(t *testing.T) {
	planned := "Describe a situation where you had to learn a new technology quickly"

	if !questionMatches("i'd love for you to describe a situation where things went sideways", planned) {
		t.Fatal("expected 3-gram window to match a paraphrase")
	}
	if questionMatches("let's talk about compensation expectations", planned) {
		t.Fatal("expected unrelated utterance not to match")
	}
}

func TestQuestionMatchesShortPlanText(t *testing.T) {
	if !questionMatches("so, any questions?", "Any questions") {
		t.Fatal("expected short plan text to match on full prefix")
	}
}

func TestQuestionMatchesMultibytePlanText(t *testing.T) {
	// The prefix cut lands in the middle of the two-byte é; the trailing
	// window must still be a usable word sequence.
	planned := strings.Repeat("deep ", 9) + "caffé machine maintenance walkthrough"

	if !questionMatches("let us go deep deep caffeine first", planned) {
		t.Fatal("expected window match when the prefix cut falls inside a rune")
	}
}
