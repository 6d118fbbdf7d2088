package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Alias1177/MatchPredictor/internal/provider"
	"github.com/Alias1177/MatchPredictor/models"
)

const maxBodyBytes = 64 << 10

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) createPrediction(w http.ResponseWriter, r *http.Request) {
	var q models.PredictionQuery
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&q); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	resp, err := s.predictor.Predict(r.Context(), q)
	if err != nil {
		status, msg := errorStatus(err)
		logEvent := s.logger.Warn()
		if status >= http.StatusInternalServerError {
			logEvent = s.logger.Error()
		}
		logEvent.Err(err).Str("request_id", middleware.GetReqID(r.Context())).Int("status", status).
			Msg("Prediction request failed")
		respondError(w, status, msg)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) listProviders(w http.ResponseWriter, r *http.Request) {
	statuses := s.providers.Status()
	open := 0
	for _, st := range statuses {
		if st.State == provider.StateCircuitOpen {
			open++
		}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"providers": statuses,
		"total":     len(statuses),
		"open":      open,
	})
}

func (s *Server) resetProvider(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.providers.Reset(id); err != nil {
		if errors.Is(err, provider.ErrUnknownProvider) {
			respondError(w, http.StatusNotFound, "unknown provider")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.logger.Info().Str("provider_id", id).Msg("Provider circuit reset")
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "provider": id})
}

func (s *Server) resetAllProviders(w http.ResponseWriter, r *http.Request) {
	s.providers.ResetAll()
	s.logger.Info().Msg("All provider circuits reset")
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// errorStatus maps the error taxonomy onto a status code and a message safe to show
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrInvalidQuery):
		return http.StatusBadRequest, strings.TrimPrefix(err.Error(), models.ErrInvalidQuery.Error()+": ")
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "match not found"
	case errors.Is(err, models.ErrNoProviderConfigured):
		return http.StatusServiceUnavailable, "prediction service is not configured"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Success: false, Error: message})
}
