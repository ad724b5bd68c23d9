// Package service implements a debug HTTP service: a read-only JSON view
// of an Engine's stats, peer registry, and routing table.
package service

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/rajnipawar/SimpleChat-DSDV-Routing/node"
	"github.com/sirupsen/logrus"
)

// Service exposes a running Engine's state over HTTP. It never mutates
// engine state; every handler is a read-only snapshot. Unlike the
// teacher, which registers on http.DefaultServeMux, this uses its own
// mux: a test process may run several engines, each with its own Service,
// and the default mux would panic on the second registration of "/stats".
type Service struct {
	sync.Mutex

	bindAddress string
	engine      *node.Engine
	logger      *logrus.Entry
	mux         *http.ServeMux
}

// NewService builds a Service bound to bindAddress, backed by engine.
func NewService(bindAddress string, engine *node.Engine, logger *logrus.Entry) *Service {
	s := &Service{
		bindAddress: bindAddress,
		engine:      engine,
		logger:      logger,
		mux:         http.NewServeMux(),
	}

	s.registerHandlers()

	return s
}

// registerHandlers registers the debug API handlers on this Service's mux.
func (s *Service) registerHandlers() {
	s.logger.Debug("registering debug service handlers")
	s.mux.HandleFunc("/stats", s.makeHandler(s.GetStats))
	s.mux.HandleFunc("/peers", s.makeHandler(s.GetPeers))
	s.mux.HandleFunc("/routes", s.makeHandler(s.GetRoutes))
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()

		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Serve calls ListenAndServe. This is a blocking call, meant to be run in
// its own goroutine.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("serving debug API")

	if err := http.ListenAndServe(s.bindAddress, s.mux); err != nil {
		s.logger.Error(err)
	}
}

// GetStats returns the engine's self id and a handful of counters.
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.engine.Stats())
}

// GetPeers returns every peer this node has ever seen.
func (s *Service) GetPeers(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.engine.Peers())
}

// GetRoutes returns the current routing table.
func (s *Service) GetRoutes(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.engine.Routes())
}
