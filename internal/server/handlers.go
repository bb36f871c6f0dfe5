package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/model"
	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/scheduler"
	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/store"
)

const maxModelsPerQuery = 8

type createQueryRequest struct {
	Prompt string                 `json:"prompt"`
	Models []string               `json:"models"`
	Params model.GenerationParams `json:"params"`
	UserID string                 `json:"user_id,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"models": s.registry.Models()})
}

func (s *Server) handleCreateQuery(w http.ResponseWriter, r *http.Request) {
	var req createQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	if len(req.Models) < 2 {
		writeError(w, http.StatusBadRequest, "at least 2 models are required")
		return
	}
	if len(req.Models) > maxModelsPerQuery {
		writeError(w, http.StatusBadRequest, "too many models requested")
		return
	}
	seen := make(map[string]bool, len(req.Models))
	for _, m := range req.Models {
		if seen[m] {
			writeError(w, http.StatusBadRequest, "duplicate model: "+m)
			return
		}
		seen[m] = true
		if _, err := s.registry.Resolve(m); err != nil {
			writeError(w, http.StatusBadRequest, "unsupported model: "+m)
			return
		}
	}

	now := time.Now().UTC()
	q := &model.Query{
		ID:        uuid.New().String(),
		UserID:    req.UserID,
		Prompt:    req.Prompt,
		Models:    req.Models,
		Params:    req.Params,
		Status:    model.QueryStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateQuery(r.Context(), q); err != nil {
		zap.L().Error("create query", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create query")
		return
	}

	if _, err := s.tasks.Enqueue(scheduler.KindOrchestration, q.ID); err != nil {
		zap.L().Error("enqueue orchestration", zap.String("query_id", q.ID), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "orchestration queue unavailable")
		return
	}

	writeJSON(w, http.StatusAccepted, q)
}

func (s *Server) handleGetQuery(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	view, err := s.orch.GetView(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "query not found")
			return
		}
		zap.L().Error("get query view", zap.String("query_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load query")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleListQueries(w http.ResponseWriter, r *http.Request) {
	filter := store.QueryFilter{
		UserID: r.URL.Query().Get("user_id"),
		Status: model.QueryStatus(r.URL.Query().Get("status")),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}
	queries, err := s.store.ListQueries(r.Context(), filter)
	if err != nil {
		zap.L().Error("list queries", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list queries")
		return
	}
	if queries == nil {
		queries = []model.Query{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"queries": queries})
}

func (s *Server) handleInvalidateCache(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.orch.InvalidateView(id) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeError(w, http.StatusNotFound, "no cached view for query")
}

type setCredentialRequest struct {
	UserID   string `json:"user_id"`
	Provider string `json:"provider"`
	Key      string `json:"key"`
	Validate bool   `json:"validate,omitempty"`
}

func (s *Server) handleSetCredential(w http.ResponseWriter, r *http.Request) {
	var req setCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == "" || req.Provider == "" || req.Key == "" {
		writeError(w, http.StatusBadRequest, "user_id, provider, and key are required")
		return
	}

	var adapterFound bool
	for _, a := range s.registry.Adapters() {
		if a.Name() == req.Provider {
			adapterFound = true
			if req.Validate && !a.ValidateCredential(r.Context(), req.Key) {
				writeError(w, http.StatusUnprocessableEntity, "credential failed validation")
				return
			}
			break
		}
	}
	if !adapterFound {
		writeError(w, http.StatusBadRequest, "unknown provider: "+req.Provider)
		return
	}

	if err := s.store.SetCredential(r.Context(), req.UserID, req.Provider, req.Key); err != nil {
		zap.L().Error("set credential", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to store credential")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeadLetters(w http.ResponseWriter, r *http.Request) {
	entries := s.tasks.DeadLetters()
	if entries == nil {
		entries = []scheduler.DLQEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
