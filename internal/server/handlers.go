package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/mindline/internal/keyword"
	"github.com/hyperjump/mindline/internal/models"
	"github.com/hyperjump/mindline/internal/pipeline"
	"github.com/hyperjump/mindline/internal/query"
	"github.com/hyperjump/mindline/internal/storage"
)

type analyzeRequest struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
	// Hours sizes a trailing window ending at End (or now) when Start is absent.
	Hours int `json:"hours,omitempty" validate:"omitempty,min=1,max=8760"`
}

type analyzeResponse struct {
	RunID        string                       `json:"run_id"`
	Start        time.Time                    `json:"start"`
	End          time.Time                    `json:"end"`
	Items        int                          `json:"items"`
	Clusters     int                          `json:"clusters"`
	Skipped      int                          `json:"skipped"`
	SourceErrors map[models.SourceType]string `json:"source_errors,omitempty"`
	DurationMS   int64                        `json:"duration_ms"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if s.analyzer == nil {
		s.respondError(w, http.StatusNotImplemented, "analysis not enabled")
		return
	}
	var req analyzeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if err := s.validate.Struct(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	end := s.now().UTC()
	if req.End != nil {
		end = req.End.UTC()
	}
	start := end.Add(-24 * time.Hour)
	switch {
	case req.Start != nil:
		start = req.Start.UTC()
	case req.Hours > 0:
		start = end.Add(-time.Duration(req.Hours) * time.Hour)
	}
	if end.Before(start) {
		s.respondError(w, http.StatusBadRequest, "end is before start")
		return
	}

	s.logger.Debug("analyze request", zap.Time("start", start), zap.Time("end", end))
	res, err := s.analyzer.Analyze(r.Context(), start, end)
	if err != nil {
		s.logger.Error("analysis failed", zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, pipeline.ErrAllSourcesFailed) {
			status = http.StatusBadGateway
		}
		body := map[string]any{"error": err.Error()}
		if res != nil && len(res.SourceErrors) > 0 {
			body["source_errors"] = res.SourceErrors
		}
		s.respondJSON(w, status, body)
		return
	}
	s.respondJSON(w, http.StatusOK, analyzeResponse{
		RunID:        res.RunID,
		Start:        res.Start,
		End:          res.End,
		Items:        len(res.Items),
		Clusters:     len(res.Clusters),
		Skipped:      res.Skipped,
		SourceErrors: res.SourceErrors,
		DurationMS:   res.Duration.Milliseconds(),
	})
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts, err := s.parseList(q)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	start, end, err := parseRange(q)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, err := s.engine.Range(r.Context(), start, end, opts)
	if err != nil {
		s.respondStoreError(w, "range query failed", err)
		return
	}
	s.respondItems(w, items)
}

type conceptsRequest struct {
	Concepts  []string `json:"concepts" validate:"max=50,dive,required,max=100"`
	Limit     int      `json:"limit,omitempty" validate:"min=0,max=10000"`
	Offset    int      `json:"offset,omitempty" validate:"min=0"`
	Ascending bool     `json:"ascending,omitempty"`
	Sources   []string `json:"sources,omitempty" validate:"dive,oneof=screenshot note email meeting"`
}

func (s *Server) handleItemsByConcepts(w http.ResponseWriter, r *http.Request) {
	var req conceptsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts := listParams{Limit: req.Limit, Offset: req.Offset, Sources: req.Sources}.options()
	opts.Ascending = req.Ascending
	s.logger.Debug("concept query", zap.Strings("concepts", req.Concepts))
	items, err := s.engine.ByConcepts(r.Context(), req.Concepts, opts)
	if err != nil {
		s.respondStoreError(w, "concept query failed", err)
		return
	}
	s.respondItems(w, items)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.engine.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondStoreError(w, "get item failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, item)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete item request", zap.String("id", id))
	if err := s.engine.Delete(r.Context(), id); err != nil {
		s.respondStoreError(w, "delete failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func (s *Server) handleRelated(w http.ResponseWriter, r *http.Request) {
	items, err := s.engine.Related(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondStoreError(w, "related query failed", err)
		return
	}
	s.respondItems(w, items)
}

type searchParams struct {
	Query     string `validate:"required,max=1000"`
	Mode      string `validate:"omitempty,oneof=substring fulltext"`
	Fuzziness int    `validate:"min=0,max=2"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts, err := s.parseList(q)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	p := searchParams{Query: q.Get("q"), Mode: q.Get("mode")}
	if p.Fuzziness, err = intParam(q, "fuzziness", 0); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.validate.Struct(p); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("search request", zap.String("query", p.Query), zap.String("mode", p.Mode))

	if p.Mode == "fulltext" {
		start, end, err := parseRange(q)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		kopts := &keyword.SearchOptions{TitleBoost: 2, Fuzziness: p.Fuzziness, Sources: opts.Sources}
		if q.Get("start") != "" {
			kopts.Start = start
		}
		if q.Get("end") != "" {
			kopts.End = end
		}
		limit := opts.Limit
		if limit == 0 {
			limit = 100
		}
		results, err := s.engine.FullText(r.Context(), p.Query, limit, kopts)
		if errors.Is(err, query.ErrNoIndex) {
			s.respondError(w, http.StatusNotImplemented, err.Error())
			return
		}
		if err != nil {
			s.respondStoreError(w, "full-text search failed", err)
			return
		}
		if results == nil {
			results = []query.Result{}
		}
		s.respondJSON(w, http.StatusOK, map[string]any{"results": results, "count": len(results)})
		return
	}

	items, err := s.engine.Search(r.Context(), p.Query, opts)
	if err != nil {
		s.respondStoreError(w, "search failed", err)
		return
	}
	s.respondItems(w, items)
}

func (s *Server) handleTopConcepts(w http.ResponseWriter, r *http.Request) {
	n, err := intParam(r.URL.Query(), "n", 20)
	if err != nil || n < 1 || n > 1000 {
		s.respondError(w, http.StatusBadRequest, "n must be between 1 and 1000")
		return
	}
	concepts, err := s.engine.TopConcepts(r.Context(), n)
	if err != nil {
		s.respondStoreError(w, "top concepts failed", err)
		return
	}
	if concepts == nil {
		concepts = []models.ConceptCount{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"concepts": concepts})
}

func (s *Server) handleClusters(w http.ResponseWriter, r *http.Request) {
	clusters, err := s.engine.Clusters(r.Context())
	if err != nil {
		s.respondStoreError(w, "clusters failed", err)
		return
	}
	if clusters == nil {
		clusters = []models.ConceptCluster{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"clusters": clusters, "count": len(clusters)})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseRange(r.URL.Query())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	stats, err := s.engine.Stats(r.Context(), start, end)
	if err != nil {
		s.respondStoreError(w, "stats failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleWindows(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, end, err := parseRange(q)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	size := query.DefaultWindow
	if v := q.Get("size"); v != "" {
		if size, err = time.ParseDuration(v); err != nil || size < time.Minute {
			s.respondError(w, http.StatusBadRequest, "size must be a duration of at least 1m")
			return
		}
	}
	windows, err := s.engine.TimeWindows(r.Context(), start, end, size)
	if err != nil {
		s.respondStoreError(w, "time windows failed", err)
		return
	}
	if windows == nil {
		windows = []models.TimeWindow{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"windows": windows, "count": len(windows)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondItems(w http.ResponseWriter, items []models.TimelineItem) {
	if items == nil {
		items = []models.TimelineItem{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

// respondStoreError maps storage sentinels onto status codes.
func (s *Server) respondStoreError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "item not found")
	case errors.Is(err, storage.ErrInvalidRange):
		s.respondError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error(msg, zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
