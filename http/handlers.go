package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"heartrisk/ml"
	"heartrisk/monitoring"
	"heartrisk/predlog"
	"heartrisk/service"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 500
)

// ModelInfo describes the loaded classifier for the health endpoint.
type ModelInfo struct {
	Type      string  `json:"model_type"`
	Features  int     `json:"feature_count"`
	Threshold float64 `json:"threshold"`
}

// RecentReader is implemented by the SQLite prediction mirror.
type RecentReader interface {
	Recent(ctx context.Context, limit int) ([]predlog.LogEntry, error)
}

// Deps everything the handlers need; Recent and Feed are optional
type Deps struct {
	Predictor *service.Predictor
	Model     ModelInfo
	Recent    RecentReader
	Feed      *monitoring.Hub
	Logger    *zap.Logger
}

// ErrorResponse error payload; arity details are filled for input errors
type ErrorResponse struct {
	Error            string `json:"error"`
	ExpectedFeatures int    `json:"expected_features,omitempty"`
	ReceivedFeatures *int   `json:"received_features,omitempty"`
	Index            *int   `json:"index,omitempty"`
}

type handler struct {
	Deps
}

// RegisterHandlers registers the prediction routes on mux.
func RegisterHandlers(mux *http.ServeMux, deps Deps) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	h := &handler{Deps: deps}

	mux.HandleFunc("GET /{$}", h.handleHome)
	mux.HandleFunc("POST /predict", h.handlePredict)
	mux.HandleFunc("GET /api/health", h.handleHealth)
	mux.HandleFunc("GET /api/metrics", h.handleMetrics)
	if deps.Recent != nil {
		mux.HandleFunc("GET /api/predictions/recent", h.handleRecent)
	}
	if deps.Feed != nil {
		mux.HandleFunc("GET /ws/predictions", deps.Feed.HandleWebSocket)
	}
}

func (h *handler) handleHome(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(h.Predictor.Health()))
}

func (h *handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	resp, err := h.Predictor.Predict(r.Context(), r.Body)
	if err != nil {
		h.respondPredictError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *handler) respondPredictError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		tooLarge  *http.MaxBytesError
		malformed *service.MalformedRequestError
		invalid   *ml.InvalidInputError
	)
	switch {
	case errors.As(err, &tooLarge):
		respondJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{
			Error: "request body exceeds " + strconv.FormatInt(tooLarge.Limit, 10) + " bytes",
		})
	case errors.As(err, &malformed):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:            malformed.Reason,
			ExpectedFeatures: h.Model.Features,
		})
	case errors.As(err, &invalid):
		body := ErrorResponse{
			Error:            invalid.Error(),
			ExpectedFeatures: invalid.Expected,
			ReceivedFeatures: &invalid.Received,
		}
		if invalid.Index >= 0 {
			body.Index = &invalid.Index
		}
		respondJSON(w, http.StatusBadRequest, body)
	default:
		h.Logger.Error("predict failed", zap.String("request_id", GetRequestID(r.Context())), zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"model":  h.Model,
	})
}

func (h *handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snapshot := h.Predictor.Metrics().Snapshot()
	if h.Feed != nil {
		respondJSON(w, http.StatusOK, struct {
			monitoring.Snapshot
			FeedClients int `json:"feed_clients"`
		}{snapshot, h.Feed.Clients()})
		return
	}
	respondJSON(w, http.StatusOK, snapshot)
}

func (h *handler) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l <= 0 {
			respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = min(l, maxRecentLimit)
	}

	entries, err := h.Recent.Recent(r.Context(), limit)
	if err != nil {
		h.Logger.Error("query recent predictions", zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":       len(entries),
		"predictions": entries,
	})
}

// respondJSON writes data as JSON with status code
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
