package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	bulkerr "github.com/matzehuels/bulkstat/pkg/errors"
	"github.com/matzehuels/bulkstat/pkg/metabase"
)

var errNoSource = bulkerr.New(bulkerr.ErrCodeConfig, "server has no metabase source to reload")

type valuesResponse struct {
	Snapshot string   `json:"snapshot"`
	Field    string   `json:"field"`
	Count    int      `json:"count"`
	Values   []string `json:"values"`
}

type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := w.Write([]byte("ok")); err != nil {
		s.logger.Warn("write health response", "err", err)
	}
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	snap, err := s.index.Snapshot()
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set(SnapshotHeader, snap.ID.String())
	s.writeJSON(w, http.StatusOK, map[string]any{
		"snapshot":  snap.ID.String(),
		"records":   snap.Len(),
		"loaded_at": snap.LoadedAt,
		"source":    snap.Source,
	})
}

func (s *Server) handleDatasets(w http.ResponseWriter, r *http.Request) {
	s.values(w, metabase.FieldDataset, metabase.Filter{Dimension: r.URL.Query().Get("dimension")})
}

func (s *Server) handleDimensions(w http.ResponseWriter, r *http.Request) {
	s.values(w, metabase.FieldDimension, metabase.Filter{Dataset: r.URL.Query().Get("dataset")})
}

func (s *Server) handleLabels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.values(w, metabase.FieldLabel, metabase.Filter{Dimension: q.Get("dimension"), Dataset: q.Get("dataset")})
}

// handleValues answers the generic lookup: any field, filtered by any of the
// others passed as query parameters.
func (s *Server) handleValues(w http.ResponseWriter, r *http.Request) {
	field, err := metabase.ParseField(chi.URLParam(r, "field"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	f, err := filterFrom(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.values(w, field, f)
}

func (s *Server) handleContains(w http.ResponseWriter, r *http.Request) {
	f, err := filterFrom(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	snap, err := s.index.Snapshot()
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set(SnapshotHeader, snap.ID.String())
	found := f != (metabase.Filter{}) && snap.Contains(f)
	s.writeJSON(w, http.StatusOK, map[string]any{"snapshot": snap.ID.String(), "contains": found})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pattern := q.Get("q")
	if pattern == "" {
		s.writeError(w, bulkerr.New(bulkerr.ErrCodeConfig, "missing q parameter"))
		return
	}
	all, err := parseFlag(q.Get("all"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	field := metabase.FieldDataset
	if name := q.Get("field"); name != "" {
		if all {
			s.writeError(w, bulkerr.New(bulkerr.ErrCodeConfig, "field and all are exclusive"))
			return
		}
		if field, err = metabase.ParseField(name); err != nil {
			s.writeError(w, err)
			return
		}
	}
	re, err := metabase.CompilePattern(pattern)
	if err != nil {
		s.writeError(w, err)
		return
	}
	snap, err := s.index.Snapshot()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if all {
		s.writeRecords(w, snap, snap.SearchRecords(re))
		return
	}
	vals, err := snap.Search(field, re)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeValues(w, snap, field, vals)
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	f, err := filterFrom(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if f.Dataset == "" && f.Dimension == "" {
		s.writeError(w, bulkerr.New(bulkerr.ErrCodeConfig, "records requires a dataset or dimension filter"))
		return
	}
	snap, err := s.index.Snapshot()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeRecords(w, snap, snap.Select(f))
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Reload(r.Context())
	if err != nil {
		s.logger.Warn("reload failed", "err", err)
		s.writeError(w, err)
		return
	}
	w.Header().Set(SnapshotHeader, snap.ID.String())
	s.writeJSON(w, http.StatusOK, map[string]any{"snapshot": snap.ID.String(), "records": snap.Len()})
}

func (s *Server) values(w http.ResponseWriter, field metabase.Field, f metabase.Filter) {
	snap, err := s.index.Snapshot()
	if err != nil {
		s.writeError(w, err)
		return
	}
	vals, err := snap.Values(field, f)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeValues(w, snap, field, vals)
}

func (s *Server) writeValues(w http.ResponseWriter, snap *metabase.Snapshot, field metabase.Field, vals []string) {
	w.Header().Set(SnapshotHeader, snap.ID.String())
	s.writeJSON(w, http.StatusOK, valuesResponse{
		Snapshot: snap.ID.String(),
		Field:    string(field),
		Count:    len(vals),
		Values:   vals,
	})
}

func (s *Server) writeRecords(w http.ResponseWriter, snap *metabase.Snapshot, recs []metabase.Record) {
	if recs == nil {
		recs = []metabase.Record{}
	}
	w.Header().Set(SnapshotHeader, snap.ID.String())
	s.writeJSON(w, http.StatusOK, map[string]any{"snapshot": snap.ID.String(), "count": len(recs), "records": recs})
}

// parseFlag reads a boolean query parameter. Absent is false.
func parseFlag(v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, bulkerr.New(bulkerr.ErrCodeConfig, "invalid boolean %q", v)
	}
	return b, nil
}

func filterFrom(r *http.Request) (metabase.Filter, error) {
	m := make(map[string]string)
	for k, v := range r.URL.Query() {
		if len(v) > 0 && strings.TrimSpace(v[0]) != "" {
			m[k] = v[0]
		}
	}
	return metabase.FilterFrom(m)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("encode response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	code := string(bulkerr.GetCode(err))
	if code == "" {
		code = string(bulkerr.ErrCodeInternal)
	}
	s.writeJSON(w, status, errorResponse{Code: code, Error: bulkerr.UserMessage(err)})
}

func statusFor(err error) int {
	switch {
	case bulkerr.Is(err, bulkerr.ErrCodeNotLoaded):
		return http.StatusServiceUnavailable
	case bulkerr.Is(err, bulkerr.ErrCodeSchema), bulkerr.Is(err, bulkerr.ErrCodeConfig):
		return http.StatusBadRequest
	case bulkerr.Is(err, bulkerr.ErrCodeNotFound):
		return http.StatusNotFound
	case bulkerr.Is(err, bulkerr.ErrCodeTimeout):
		return http.StatusGatewayTimeout
	case bulkerr.IsFetch(err), bulkerr.Is(err, bulkerr.ErrCodeParse):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
