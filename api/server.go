// Package api exposes the HTTP surface: synchronous answers, an SSE event
// stream, and ingestion.
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/skillpath/agent/ingestion"
	"github.com/skillpath/agent/strategy"
	"github.com/skillpath/agent/stream"
)

type Server struct {
	dispatcher *strategy.Dispatcher
	ingest     *ingestion.Service
	logger     *zap.Logger
	handler    http.Handler
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type askRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"sessionId"`
	TopK      int    `json:"topK"`
	Strategy  string `json:"strategy"`
}

type askResponse struct {
	Answer   string            `json:"answer"`
	Sources  []sourceResponse  `json:"sources"`
	Metadata strategy.Metadata `json:"metadata"`
}

type sourceResponse struct {
	URL   string  `json:"url"`
	Title string  `json:"title"`
	Label string  `json:"label,omitempty"`
	Score float64 `json:"score"`
}

type ingestRequest struct {
	Dir string `json:"dir"`
}

func New(dispatcher *strategy.Dispatcher, ingest *ingestion.Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{dispatcher: dispatcher, ingest: ingest, logger: logger}
	s.handler = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/ask", s.handleAsk)
	mux.HandleFunc("/v1/ask/stream", s.handleAskStream)
	mux.HandleFunc("/v1/ingest", s.handleIngest)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{Message: "ok"})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeAsk(w, r)
	if !ok {
		return
	}

	resp, err := s.dispatcher.Answer(r.Context(), strategy.Request{
		Question:         req.Question,
		SessionID:        req.SessionID,
		TopK:             req.TopK,
		StrategyOverride: req.Strategy,
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("answer failed: %w", err))
		return
	}

	s.writeJSON(w, http.StatusOK, toAskResponse(resp))
}

// handleAskStream emits the query's event stream over SSE, terminating in
// exactly one done event carrying the answer metadata, or exactly one error
// event.
func (s *Server) handleAskStream(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeAsk(w, r)
	if !ok {
		return
	}

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming unsupported by connection"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	emit := func(ev stream.Event) error {
		return writeSSE(w, flusher, ev)
	}

	resp, err := s.dispatcher.AnswerStream(r.Context(), strategy.Request{
		Question:         req.Question,
		SessionID:        req.SessionID,
		TopK:             req.TopK,
		StrategyOverride: req.Strategy,
	}, emit)
	if err != nil {
		s.logger.Error("stream answer failed", zap.Error(err))
		_ = writeSSE(w, flusher, stream.Event{Kind: stream.KindError, Content: err.Error()})
		return
	}

	_ = writeSSE(w, flusher, stream.Event{Kind: stream.KindDone, Payload: resp.Metadata})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}
	if s.ingest == nil {
		s.writeError(w, http.StatusServiceUnavailable, fmt.Errorf("ingestion is not configured"))
		return
	}

	var req ingestRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	dir := strings.TrimSpace(req.Dir)
	if dir == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("dir is required"))
		return
	}

	if err := s.ingest.IngestDirectory(r.Context(), dir); err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("ingestion failed: %w", err))
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{Message: "ingestion complete"})
}

func (s *Server) decodeAsk(w http.ResponseWriter, r *http.Request) (askRequest, bool) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return askRequest{}, false
	}

	var req askRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return askRequest{}, false
	}

	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("question is required"))
		return askRequest{}, false
	}

	return req, true
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed, use %s", allowed))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("encode response failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Warn("api error", zap.Int("status", status), zap.Error(err))
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeSSE(w io.Writer, flusher http.Flusher, ev stream.Event) error {
	encoded, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", encoded); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}

	if dec.More() {
		return fmt.Errorf("request body must contain a single JSON object")
	}

	return nil
}

func toAskResponse(resp strategy.Response) askResponse {
	sources := make([]sourceResponse, len(resp.Sources))
	for i, src := range resp.Sources {
		sources[i] = sourceResponse{
			URL:   src.URL,
			Title: src.Title,
			Label: src.Label,
			Score: src.Score,
		}
	}

	return askResponse{
		Answer:   resp.Answer,
		Sources:  sources,
		Metadata: resp.Metadata,
	}
}
