package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultAvatarBaseURL = "https://api.heygen.com/v1"

// ErrConcurrentLimit is returned by Start when the avatar provider has no
// free session slots. The interview continues audio-only in that case.
var ErrConcurrentLimit = errors.New("avatar concurrent session limit reached")

// AvatarPublisher drives a streaming video avatar session for one
// interview. Sessions count against a provider-side concurrency quota, so
// Close must run on every teardown path.
type AvatarPublisher struct {
	apiKey   string
	avatarID string
	quality  string
	baseURL  string
	client   *http.Client
	log      logrus.FieldLogger

	mu        sync.Mutex
	sessionID string
}

// NewAvatarPublisher builds an unstarted publisher. quality is one of
// "low", "medium", "high"; anything else falls back to "low".
func NewAvatarPublisher(apiKey, avatarID, quality string, log logrus.FieldLogger) *AvatarPublisher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	switch strings.ToLower(quality) {
	case "low", "medium", "high":
		quality = strings.ToLower(quality)
	default:
		quality = "low"
	}
	return &AvatarPublisher{
		apiKey:   apiKey,
		avatarID: avatarID,
		quality:  quality,
		baseURL:  defaultAvatarBaseURL,
		client:   &http.Client{Timeout: 15 * time.Second},
		log:      log,
	}
}

// SetBaseURL points the publisher at an alternate API endpoint.
func (p *AvatarPublisher) SetBaseURL(url string) {
	p.baseURL = url
}

type avatarSessionRequest struct {
	AvatarID string `json:"avatar_id"`
	Quality  string `json:"quality"`
}

type avatarSessionResponse struct {
	Data struct {
		SessionID string `json:"session_id"`
	} `json:"data"`
	Message string `json:"message"`
}

// Start opens a streaming session. A concurrency-limit rejection maps to
// ErrConcurrentLimit so callers can degrade to audio-only.
func (p *AvatarPublisher) Start(ctx context.Context) error {
	body, err := json.Marshal(avatarSessionRequest{AvatarID: p.avatarID, Quality: p.quality})
	if err != nil {
		return fmt.Errorf("marshal avatar session request: %w", err)
	}

	resp, err := p.post(ctx, "/streaming.new", body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read avatar session response: %w", err)
	}

	var parsed avatarSessionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil && resp.StatusCode == http.StatusOK {
		return fmt.Errorf("decode avatar session response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if strings.Contains(parsed.Message, "Concurrent limit reached") {
			return ErrConcurrentLimit
		}
		return fmt.Errorf("avatar session rejected: status %d: %s", resp.StatusCode, parsed.Message)
	}
	if parsed.Data.SessionID == "" {
		return errors.New("avatar session response missing session_id")
	}

	p.mu.Lock()
	p.sessionID = parsed.Data.SessionID
	p.mu.Unlock()

	p.log.WithFields(logrus.Fields{"avatar_id": p.avatarID, "quality": p.quality}).Info("avatar session started")
	return nil
}

// Close stops the streaming session to free the provider slot. Safe to call
// more than once and without a started session.
func (p *AvatarPublisher) Close(ctx context.Context) error {
	p.mu.Lock()
	sessionID := p.sessionID
	p.sessionID = ""
	p.mu.Unlock()

	if sessionID == "" {
		return nil
	}

	body, err := json.Marshal(map[string]string{"session_id": sessionID})
	if err != nil {
		return fmt.Errorf("marshal avatar stop request: %w", err)
	}

	resp, err := p.post(ctx, "/streaming.stop", body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("avatar session stop failed: status %d", resp.StatusCode)
	}

	p.log.Debug("avatar session closed")
	return nil
}

func (p *AvatarPublisher) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build avatar request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("avatar request: %w", err)
	}
	return resp, nil
}
