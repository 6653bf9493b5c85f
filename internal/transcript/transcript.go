// Package transcript keeps the append-only utterance record of one
// interview. Entries arrive from both speech channels, are filtered for
// transcription artifacts, and are never mutated or reordered.
package transcript

import (
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/sirupsen/logrus"
)

type Speaker string

const (
	SpeakerAgent Speaker = "agent"
	SpeakerUser  Speaker = "user"
)

// Entry is one utterance. Timestamp is seconds since the interview started.
type Entry struct {
	Speaker   Speaker `json:"speaker"`
	Text      string  `json:"text"`
	Timestamp float64 `json:"timestamp"`
}

// Notifier receives each appended entry for live display. Delivery is
// best-effort; failures are logged and swallowed.
type Notifier interface {
	NotifyTranscript(e Entry) error
}

// Log is the append-only transcript of one interview.
type Log struct {
	notifier Notifier
	log      logrus.FieldLogger
	now      func() time.Time

	mu        sync.Mutex
	startedAt time.Time
	entries   []Entry
}

// NewLog creates an empty transcript anchored at now. notifier may be nil.
func NewLog(notifier Notifier, log logrus.FieldLogger) *Log {
	if log == nil {
		log = logrus.StandardLogger()
	}
	l := &Log{
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
	l.startedAt = l.now()
	return l
}

// Append records an utterance. Empty text is dropped; so are user entries
// that are pure punctuation, a known artifact of the transcription backend
// on the candidate channel. Returns the stored entry and whether it was
// kept.
func (l *Log) Append(speaker Speaker, text string) (Entry, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Entry{}, false
	}
	if speaker == SpeakerUser && punctuationOnly(trimmed) {
		return Entry{}, false
	}

	l.mu.Lock()
	elapsed := l.now().Sub(l.startedAt).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	entry := Entry{Speaker: speaker, Text: trimmed, Timestamp: elapsed}
	l.entries = append(l.entries, entry)
	l.mu.Unlock()

	if l.notifier != nil {
		if err := l.notifier.NotifyTranscript(entry); err != nil {
			l.log.WithError(err).Warn("transcript notification failed")
		}
	}

	return entry, true
}

// Snapshot returns the entries in arrival order.
func (l *Log) Snapshot() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

// Len returns the number of stored entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func punctuationOnly(s string) bool {
	for _, r := range s {
		if !unicode.IsPunct(r) && !unicode.IsSymbol(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
