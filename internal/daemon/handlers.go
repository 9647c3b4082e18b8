package daemon

import (
	"encoding/json"
	"net/http"

	"github.com/al0nec0der/StrIve-sub000/internal/api"
	"github.com/al0nec0der/StrIve-sub000/internal/logging"
	"github.com/al0nec0der/StrIve-sub000/internal/metrics"
	"github.com/al0nec0der/StrIve-sub000/internal/services"
	"github.com/al0nec0der/StrIve-sub000/internal/tmdb"
)

const (
	maxBatchIDs       = 500
	maxBatchBodyBytes = 1 << 20
)

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status()
	state := "ok"
	if !status.Running {
		state = "stopped"
	} else if status.UsableKeys == 0 || status.CatalogBreaker == "open" {
		state = "degraded"
	}
	payload := api.HealthResponse{
		Status:         state,
		Running:        status.Running,
		PID:            status.PID,
		LockFilePath:   status.LockFilePath,
		CatalogBreaker: status.CatalogBreaker,
		Usable:         status.UsableKeys,
	}
	if !status.StartedAt.IsZero() {
		payload.StartedAt = status.StartedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleRating(w http.ResponseWriter, r *http.Request) {
	mediaType, err := tmdb.ParseMediaType(r.PathValue("type"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := s.daemon.deps.Ratings.GetRating(r.Context(), r.PathValue("id"), mediaType)
	if err != nil {
		s.writeError(w, services.HTTPStatus(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.RatingResponse{Rating: api.FromRecord(rec)})
}

func (s *apiServer) handleBatch(w http.ResponseWriter, r *http.Request) {
	mediaType, err := tmdb.ParseMediaType(r.PathValue("type"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req api.BatchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBatchBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid batch body: "+err.Error())
		return
	}
	if len(req.IDs) == 0 {
		s.writeError(w, http.StatusBadRequest, "ids must not be empty")
		return
	}
	if len(req.IDs) > maxBatchIDs {
		s.writeError(w, http.StatusRequestEntityTooLarge, "too many ids in one batch")
		return
	}
	recs := s.daemon.deps.Ratings.GetRatingsBatch(r.Context(), req.IDs, mediaType)
	s.writeJSON(w, http.StatusOK, api.BatchResponse{Ratings: api.FromRecords(recs)})
}

func (s *apiServer) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	snap := s.daemon.deps.Ratings.MetricsSnapshot()
	recommendations := metrics.Recommendations(snap)
	if recommendations == nil {
		recommendations = []string{}
	}
	status := s.daemon.Status()
	s.writeJSON(w, http.StatusOK, api.DiagnosticsResponse{
		Metrics:         api.FromSnapshot(snap),
		Recommendations: recommendations,
		Credentials:     api.FromCredentials(s.daemon.deps.Pool.Snapshot()),
		Usable:          status.UsableKeys,
		CatalogBreaker:  status.CatalogBreaker,
		CachedRatings:   s.cachedRatings(r),
	})
}

func (s *apiServer) cachedRatings(r *http.Request) *int {
	cache := s.daemon.deps.Cache
	if cache == nil {
		return nil
	}
	n, ok, err := cache.Count(r.Context())
	if err != nil {
		s.logger.Warn("rating cache count failed",
			logging.String(logging.FieldEventType, "rating_cache_count_failed"),
			logging.String(logging.FieldErrorHint, "check the cache backend"),
			logging.Error(err),
		)
		return nil
	}
	if !ok {
		return nil
	}
	return &n
}

func (s *apiServer) handleDiagnosticsReset(w http.ResponseWriter, r *http.Request) {
	s.daemon.deps.Ratings.ResetMetrics()
	s.logger.Info("request metrics reset by operator")
	s.writeJSON(w, http.StatusOK, api.ResetResponse{Reset: true, Message: "metrics reset"})
}

func (s *apiServer) handleKeys(w http.ResponseWriter, r *http.Request) {
	pool := s.daemon.deps.Pool
	s.writeJSON(w, http.StatusOK, api.KeysResponse{
		Credentials: api.FromCredentials(pool.Snapshot()),
		Usable:      pool.Usable(),
	})
}

func (s *apiServer) handleKeysReset(w http.ResponseWriter, r *http.Request) {
	s.daemon.deps.Pool.ResetDaily()
	s.writeJSON(w, http.StatusOK, api.ResetResponse{Reset: true, Message: "daily credential quotas reset"})
}
