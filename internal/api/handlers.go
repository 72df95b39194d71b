package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/azorzini/itb-back/internal/storage"
)

// allowedWindows is the closed set of APR window sizes.
var allowedWindows = map[int]bool{1: true, 12: true, 24: true}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	opts := storage.QueryOptions{}
	var err error
	if opts.StartTime, err = parseTimeParam(r, "start"); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if opts.EndTime, err = parseTimeParam(r, "end"); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if opts.Limit, err = parseIntParam(r, "limit"); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if opts.Offset, err = parseIntParam(r, "offset"); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	snaps, err := s.store.Query(r.Context(), address, opts)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snaps)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	snap, ok, err := s.store.Latest(r.Context(), address)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("no snapshots for pool %s", address))
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleAPR(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	// The window whitelist is enforced here, before any store or
	// engine call.
	windowRaw := r.URL.Query().Get("window")
	if windowRaw == "" {
		windowRaw = "24"
	}
	window, err := strconv.Atoi(windowRaw)
	if err != nil || !allowedWindows[window] {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("window must be one of 1, 12, 24 hours"))
		return
	}

	start, err := parseTimeParam(r, "start")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	end, err := parseTimeParam(r, "end")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	now := time.Now().UTC()
	if end == nil {
		end = &now
	}
	if start == nil {
		from := end.Add(-24 * time.Hour)
		start = &from
	}

	points, err := s.engine.TimeSeries(r.Context(), address, window, *start, *end)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	if err := s.scheduler.TriggerNow(r.Context()); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "collected"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.collector.Status(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"collection": status,
		"scheduler":  s.scheduler.Status(),
	})
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrUnavailable) {
		s.writeError(w, http.StatusServiceUnavailable, errors.New("snapshot store unavailable"))
		return
	}
	s.logger.Error("request failed", zap.Error(err))
	s.writeError(w, http.StatusInternalServerError, errors.New("internal error"))
}

func (s *Server) writeError(w http.ResponseWriter, code int, err error) {
	s.writeJSON(w, code, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("encode response", zap.Error(err))
	}
}

func parseTimeParam(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
		ts := time.Unix(unix, 0).UTC()
		return &ts, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be unix seconds or RFC3339", name)
	}
	ts = ts.UTC()
	return &ts, nil
}

func parseIntParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return val, nil
}
