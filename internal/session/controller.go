// Package session orchestrates interview lifecycles: one Controller per
// call, tracked by a Registry. The controller owns every per-interview
// resource and guarantees they are released exactly once, in order, on
// every exit path.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/synchire/interview-agent/internal/completion"
	"github.com/synchire/interview-agent/internal/notify"
	"github.com/synchire/interview-agent/internal/platform"
	"github.com/synchire/interview-agent/internal/storage"
	"github.com/synchire/interview-agent/internal/transcript"
)

// Deps carries everything a controller needs. Factories run per session so
// concurrent interviews never share a room, brain, or transcriber.
type Deps struct {
	Rooms RoomFactory
	// NewBrain receives the full request so the factory can personalize the
	// interviewer prompt with the candidate and question plan.
	NewBrain func(room platform.Room, req Request) Brain
	NewSTT   func(ctx context.Context, sink SpeechSink) (AudioTranscriber, error)
	// NewAvatar may be nil (avatar not configured) or return nil.
	NewAvatar func() Avatar

	Store      Store
	Webhook    Notifier
	Summarizer Summarizer
	Archiver   Archiver
	Hub        EventBroadcaster

	MinimumDuration   time.Duration
	CompletionTimeout time.Duration
	GraceDelay        time.Duration

	Log logrus.FieldLogger
}

// Controller runs one interview from join to report.
type Controller struct {
	req  Request
	deps Deps
	log  logrus.FieldLogger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	detector *completion.Detector
	tlog     *transcript.Log

	mu          sync.Mutex
	state       State
	brain       Brain
	room        platform.Room
	transcriber AudioTranscriber
	avatar      Avatar

	teardownOnce sync.Once
}

// NewController builds an unstarted controller. Call Run to drive the
// interview; Cancel aborts it at any phase.
func NewController(req Request, deps Deps) *Controller {
	log := deps.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("call_id", req.CallID)

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		req:    req,
		deps:   deps,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		state:  StateCreated,
	}
	c.tlog = transcript.NewLog(&transcriptNotifier{c: c}, log)
	c.detector = completion.NewDetector(req.Questions, deps.MinimumDuration, &progressNotifier{c: c}, log)
	return c
}

// Cancel aborts the session. Teardown still runs; a cancelled interview is
// reported with whatever completion state it reached.
func (c *Controller) Cancel() {
	c.cancel()
}

// Done is closed when Run has finished, teardown included.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Status returns a point-in-time snapshot.
func (c *Controller) Status() Status {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	return Status{
		CallID:               c.req.CallID,
		CandidateName:        c.req.CandidateName,
		JobTitle:             c.req.JobTitle,
		State:                state,
		QuestionsAsked:       c.detector.QuestionsAsked(),
		CurrentQuestionIndex: c.detector.CurrentQuestionIndex(),
		TotalQuestions:       len(c.req.Questions),
		DurationMinutes:      c.detector.DurationMinutes(),
		Completed:            c.detector.Completed(),
		Reason:               c.detector.Reason(),
	}
}

// Run drives the interview to completion. It returns an error only when
// setup fails; once the call is joined, every failure is handled
// internally and the session still produces a report.
func (c *Controller) Run() error {
	defer close(c.done)
	defer c.cancel()

	if err := c.setup(); err != nil {
		c.teardown()
		c.setState(StateTerminated)
		return err
	}

	c.setState(StateRunning)

	timeout := c.deps.CompletionTimeout
	if timeout <= 0 {
		timeout = completion.DefaultTimeout
	}
	if err := c.detector.Wait(c.ctx, timeout); err != nil {
		c.log.WithError(err).Info("session cancelled before completion")
	}

	c.setState(StateCompleting)

	// Let the closing words finish playing before leaving the call. Skipped
	// when the session was cancelled.
	if c.ctx.Err() == nil && c.deps.GraceDelay > 0 {
		select {
		case <-time.After(c.deps.GraceDelay):
		case <-c.ctx.Done():
		}
	}

	c.teardown()
	c.finalize()
	c.setState(StateTerminated)
	return nil
}

func (c *Controller) setup() error {
	room := c.deps.Rooms.Room(c.req.CallID)
	c.mu.Lock()
	c.room = room
	c.mu.Unlock()

	if c.deps.NewSTT != nil {
		tr, err := c.deps.NewSTT(c.ctx, &userSpeechSink{c: c})
		if err != nil {
			return fmt.Errorf("start transcriber: %w", err)
		}
		c.mu.Lock()
		c.transcriber = tr
		c.mu.Unlock()
		room.SetAudioSink(tr)
	}

	if c.deps.NewAvatar != nil {
		if av := c.deps.NewAvatar(); av != nil {
			if err := av.Start(c.ctx); err != nil {
				c.log.WithError(err).Warn("avatar unavailable, continuing audio-only")
			} else {
				c.mu.Lock()
				c.avatar = av
				c.mu.Unlock()
			}
		}
	}

	room.Subscribe(c)
	if err := room.Join(c.ctx); err != nil {
		return fmt.Errorf("join call: %w", err)
	}
	c.setState(StateJoined)

	if c.deps.Hub != nil {
		c.deps.Hub.BroadcastInterviewStarted(c.req.CallID, c.req.CandidateName, c.req.JobTitle, len(c.req.Questions))
	}

	brain := c.deps.NewBrain(room, c.req)
	c.mu.Lock()
	c.brain = brain
	c.mu.Unlock()
	if err := brain.Greet(c.ctx, c.req.CandidateName); err != nil {
		c.log.WithError(err).Error("opening greeting failed")
	}

	return nil
}

// teardown releases session resources in dependency order: the avatar
// session first to free its provider slot, then the transcriber, then the
// call itself. Failures are logged; later steps still run.
func (c *Controller) teardown() {
	c.teardownOnce.Do(func() {
		c.mu.Lock()
		avatar := c.avatar
		transcriber := c.transcriber
		room := c.room
		c.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if avatar != nil {
			if err := avatar.Close(ctx); err != nil {
				c.log.WithError(err).Warn("avatar session close failed")
			}
		}
		if transcriber != nil {
			if err := transcriber.Close(); err != nil {
				c.log.WithError(err).Warn("transcriber close failed")
			}
		}
		if room != nil {
			if err := room.Leave(); err != nil {
				c.log.WithError(err).Warn("leaving call failed")
			}
		}
	})
}

// finalize persists and reports the finished interview. Each step is
// best-effort: a failed webhook must not lose the stored record and vice
// versa.
func (c *Controller) finalize() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	completedAt := time.Now().UTC()
	entries := c.tlog.Snapshot()
	duration := c.detector.DurationMinutes()
	reason := c.detector.Reason()
	if !c.detector.Completed() {
		reason = "shutdown requested"
	}

	var summaryText string
	if c.deps.Summarizer != nil {
		text, err := c.deps.Summarizer.Generate(ctx, c.req.CandidateName, c.req.JobTitle, entries)
		if err != nil {
			c.log.WithError(err).Warn("summary generation failed")
		} else {
			summaryText = text
		}
	}

	report := notify.NewReport(c.req.CallID, c.req.CandidateName, c.req.JobTitle, duration, completedAt, summaryText, entries)

	if c.deps.Store != nil {
		iv := storage.Interview{
			ID:              c.req.CallID,
			CandidateName:   c.req.CandidateName,
			JobTitle:        c.req.JobTitle,
			StartedAt:       c.detector.StartedAt(),
			CompletedAt:     completedAt,
			DurationMinutes: report.DurationMinutes,
			QuestionsAsked:  c.detector.QuestionsAsked(),
			Reason:          reason,
			Summary:         summaryText,
		}
		if err := c.deps.Store.SaveInterview(iv, entries); err != nil {
			c.log.WithError(err).Error("persisting interview failed")
		}
	}

	if c.deps.Webhook != nil {
		if err := c.deps.Webhook.Send(ctx, report); err != nil {
			c.log.WithError(err).Error("completion webhook failed")
		}
	}

	if c.deps.Archiver != nil {
		if err := c.deps.Archiver.UploadReport(ctx, report); err != nil {
			c.log.WithError(err).Warn("report archive upload failed")
		}
	}

	if c.deps.Hub != nil {
		c.deps.Hub.BroadcastInterviewCompleted(c.req.CallID, reason, report.DurationMinutes, c.detector.QuestionsAsked())
	}

	c.log.WithFields(logrus.Fields{
		"reason":           reason,
		"duration_minutes": report.DurationMinutes,
		"questions_asked":  c.detector.QuestionsAsked(),
	}).Info("interview finished")
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// OnAgentSpeech handles interviewer utterances from the call.
func (c *Controller) OnAgentSpeech(text string, at time.Time) {
	if _, ok := c.tlog.Append(transcript.SpeakerAgent, text); !ok {
		return
	}
	c.detector.OnAgentSpeech(text, at)
}

// OnUserSpeech handles candidate utterances, whichever channel they arrive
// on. The brain's reply runs on its own goroutine so a slow LLM turn never
// stalls event delivery.
func (c *Controller) OnUserSpeech(text string, at time.Time) {
	if _, ok := c.tlog.Append(transcript.SpeakerUser, text); !ok {
		return
	}
	c.detector.OnUserSpeech(text, at)

	c.mu.Lock()
	brain := c.brain
	c.mu.Unlock()
	if brain != nil {
		go brain.OnUserSpeech(c.ctx, text)
	}
}

type userSpeechSink struct {
	c *Controller
}

func (s *userSpeechSink) OnUserSpeech(text string, at time.Time) {
	s.c.OnUserSpeech(text, at)
}

// transcriptNotifier forwards stored entries to the monitor hub and to
// call participants.
type transcriptNotifier struct {
	c *Controller
}

func (n *transcriptNotifier) NotifyTranscript(e transcript.Entry) error {
	if n.c.deps.Hub != nil {
		n.c.deps.Hub.BroadcastTranscript(n.c.req.CallID, e)
	}

	n.c.mu.Lock()
	room := n.c.room
	n.c.mu.Unlock()
	if room == nil {
		return nil
	}
	return room.SendCustomEvent("transcript", map[string]any{
		"speaker":   string(e.Speaker),
		"text":      e.Text,
		"timestamp": e.Timestamp,
	})
}

// progressNotifier announces question progress to call participants and
// the monitor hub.
type progressNotifier struct {
	c *Controller
}

func (n *progressNotifier) NotifyProgress(questionIndex int, category string, totalQuestions int) error {
	if n.c.deps.Hub != nil {
		n.c.deps.Hub.BroadcastProgress(n.c.req.CallID, questionIndex, category, totalQuestions)
	}

	n.c.mu.Lock()
	room := n.c.room
	n.c.mu.Unlock()
	if room == nil {
		return nil
	}
	return room.SendCustomEvent("interview_progress", map[string]any{
		"questionIndex":  questionIndex,
		"category":       category,
		"totalQuestions": totalQuestions,
	})
}
