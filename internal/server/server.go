// Package server exposes the control-plane HTTP surface: interview join
// and shutdown, health and status, stored interview history, and the
// monitor websocket.
package server

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

func Handler(hub *Hub, store InterviewStore, interviews InterviewService, ready func() bool, log logrus.FieldLogger) http.Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	mux := http.NewServeMux()

	registerWSRoute(mux, hub, log)
	registerAPIRoutes(mux, store, interviews, ready)

	return mux
}

// New builds the HTTP server. Run ListenAndServe on the result; Shutdown
// is the caller's responsibility.
func New(addr string, hub *Hub, store InterviewStore, interviews InterviewService, ready func() bool, log logrus.FieldLogger) *http.Server {
	if log == nil {
		log = logrus.StandardLogger()
	}

	h := Handler(hub, store, interviews, ready, log)
	log.WithField("addr", addr).Info("control API listening")

	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
