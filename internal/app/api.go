// Copyright 2025 Arion Yau
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"quarry/internal/logger"
)

// Sender is the producer surface the API handlers depend on. Tests
// substitute a fake; production wiring passes *mq.Producer.
type Sender interface {
	SendSync(ctx context.Context, topic, tag, body string) (string, error)
	SendSyncWithKey(ctx context.Context, topic, tag, key, body string) (string, error)
}

// Receiver is the recorded-message view the API exposes
type Receiver interface {
	Messages() []string
	Count() int
	Clear()
}

// Server is the HTTP surface of the demo application: a producer endpoint
// and a view over received messages, wired against a running cluster.
type Server struct {
	config   *Config
	sender   Sender
	receiver Receiver
	logger   zerolog.Logger
	server   *http.Server
}

// NewServer creates the demo HTTP server
func NewServer(config *Config, sender Sender, receiver Receiver) *Server {
	return &Server{
		config:   config,
		sender:   sender,
		receiver: receiver,
		logger:   logger.New(),
	}
}

// Router builds the HTTP routing table
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.loggingMiddleware)

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.HandleFunc("/messages", s.handleSendMessage).Methods("POST")
	apiRouter.HandleFunc("/messages", s.handleListMessages).Methods("GET")
	apiRouter.HandleFunc("/messages", s.handleClearMessages).Methods("DELETE")
	apiRouter.HandleFunc("/status", s.handleStatus).Methods("GET")

	return router
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.config.ListenAddr,
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info().
		Str("address", s.config.ListenAddr).
		Str("topic", s.config.Topic).
		Msg("Starting demo API server")

	return s.server.ListenAndServe()
}

// Stop shuts the HTTP server down gracefully
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("API request")
	})
}

// Response helpers
func (s *Server) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// SendMessageRequest is the POST /messages payload
type SendMessageRequest struct {
	Body string `json:"body"`
	Tag  string `json:"tag,omitempty"`
	Key  string `json:"key,omitempty"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Body == "" {
		s.sendError(w, http.StatusBadRequest, "body is required")
		return
	}

	var msgID string
	var err error
	if req.Key != "" {
		msgID, err = s.sender.SendSyncWithKey(r.Context(), s.config.Topic, req.Tag, req.Key, req.Body)
	} else {
		msgID, err = s.sender.SendSync(r.Context(), s.config.Topic, req.Tag, req.Body)
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to send message")
		s.sendError(w, http.StatusBadGateway, fmt.Sprintf("send failed: %v", err))
		return
	}

	s.sendJSON(w, http.StatusCreated, map[string]interface{}{
		"msg_id": msgID,
		"topic":  s.config.Topic,
		"tag":    req.Tag,
	})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	messages := s.receiver.Messages()
	s.sendJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(messages),
		"messages": messages,
	})
}

func (s *Server) handleClearMessages(w http.ResponseWriter, r *http.Request) {
	s.receiver.Clear()
	s.sendJSON(w, http.StatusOK, map[string]interface{}{
		"cleared": true,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "running",
		"name_server": s.config.NameServer,
		"topic":       s.config.Topic,
		"received":    s.receiver.Count(),
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}
