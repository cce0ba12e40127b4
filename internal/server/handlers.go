package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/hyperjump/shirabe/internal/indexer"
	"github.com/hyperjump/shirabe/internal/models"
	"github.com/hyperjump/shirabe/internal/search"
	"github.com/hyperjump/shirabe/internal/storage"
	"github.com/hyperjump/shirabe/pkg/utils"
)

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.RetrievalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("query request", zap.String("query", utils.Truncate(req.Query, 200)), zap.Int("k", req.K))

	response, err := s.engine.Retrieve(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, search.ErrTimeout):
			s.respondError(w, http.StatusGatewayTimeout, err.Error())
		default:
			s.logger.Error("retrieval failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

type ingestRequest struct {
	Chunks []*models.Chunk `json:"chunks"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Chunks) == 0 {
		s.respondError(w, http.StatusBadRequest, "chunks are required")
		return
	}
	s.logger.Debug("ingest request", zap.Int("chunks", len(req.Chunks)))

	stats, err := s.indexer.Ingest(r.Context(), req.Chunks)
	if err != nil {
		switch {
		case errors.Is(err, indexer.ErrInvalidChunk):
			s.respondError(w, http.StatusBadRequest, err.Error())
		default:
			// Dimension mismatches land here too: the message carries the
			// operator guidance, and the state is a server-side fault.
			s.logger.Error("ingest failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("rebuild request")
	if err := s.indexer.RebuildIndexes(r.Context()); err != nil {
		s.logger.Error("rebuild failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "rebuilt"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	total, err := s.storage.Count(ctx)
	if err != nil {
		s.logger.Error("status: count failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	bySource, err := s.storage.CountBySource(ctx)
	if err != nil {
		s.logger.Error("status: count by source failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := map[string]interface{}{
		"domain":            s.domain.Name(),
		"display_name":      s.domain.DisplayName(),
		"chunks":            total,
		"chunks_by_source":  bySource,
		"vector_index_size": s.engine.VectorIndexSize(),
		"embedding": map[string]interface{}{
			"model":      s.config.Embedding.Model,
			"dimensions": s.config.Embedding.Dimensions,
		},
	}
	if size, err := storage.DatabaseSizeBytes(s.config.Storage.DatabasePath); err == nil {
		resp["database_size_bytes"] = size
	}
	if profiles := s.domain.States(); len(profiles) > 0 {
		codes := make([]string, 0, len(profiles))
		for _, p := range profiles {
			codes = append(codes, p.Code)
		}
		resp["states"] = codes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
