package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/roach88/geonudge/internal/errs"
	"github.com/roach88/geonudge/internal/geo"
	"github.com/roach88/geonudge/internal/model"
)

const maxBody = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := s.store.Ping(r.Context()) == nil
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	if s.profile == nil {
		writeJSON(w, http.StatusOK, map[string]any{"active": false})
		return
	}
	p, active := s.profile.Profile()
	if !active {
		writeJSON(w, http.StatusOK, map[string]any{"active": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"active":         true,
		"name":           p.Name,
		"accuracy":       p.Accuracy,
		"min_interval_s": p.MinInterval.Seconds(),
		"min_distance_m": p.MinDistanceM,
	})
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 50)
	if err != nil {
		s.writeError(w, err)
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		s.writeError(w, err)
		return
	}
	events, err := s.store.QueryTimeline(r.Context(), limit, offset)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "limit": limit, "offset": offset})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Stats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleTodayStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.TodayStats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleLocations(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 100)
	if err != nil {
		s.writeError(w, err)
		return
	}
	locs, err := s.store.LocationHistory(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"locations": locs})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if s.alerts == nil {
		writeJSON(w, http.StatusOK, map[string]any{"alerts": []any{}})
		return
	}
	limit, err := intParam(r, "limit", 20)
	if err != nil {
		s.writeError(w, err)
		return
	}
	alerts, err := s.alerts.Recent(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

// handleSamples accepts one sample object or an array of them.
func (s *Server) handleSamples(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		s.writeError(w, errs.Wrap(err, errs.CodeServerRequestInvalid, "reading body"))
		return
	}
	body = bytes.TrimSpace(body)

	var samples []model.Sample
	if len(body) > 0 && body[0] == '[' {
		err = json.Unmarshal(body, &samples)
	} else {
		var one model.Sample
		err = json.Unmarshal(body, &one)
		samples = []model.Sample{one}
	}
	if err != nil {
		s.writeError(w, errs.Wrap(err, errs.CodeServerRequestInvalid, "invalid sample json"))
		return
	}

	for i, sample := range samples {
		if !geo.ValidCoordinate(sample.Latitude, sample.Longitude) {
			s.writeError(w, errs.Errorf(errs.CodeEngineSampleInvalid, "samples[%d]: invalid coordinate", i))
			return
		}
	}

	accepted := 0
	for _, sample := range samples {
		if err := s.intake(sample); err != nil {
			if accepted == 0 {
				s.writeError(w, err)
				return
			}
			s.logger.Warn("sample batch truncated", "accepted", accepted, "error", err)
			break
		}
		accepted++
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"accepted": accepted, "received": len(samples)})
}

func (s *Server) handleListReminders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"reminders": s.engine.Reminders()})
}

func (s *Server) handleRegisterReminder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID              string   `json:"id"`
		StoreType       string   `json:"store_type"`
		Title           string   `json:"title"`
		Memo            string   `json:"memo"`
		TriggerDistance *float64 `json:"trigger_distance"`
		IsActive        *bool    `json:"is_active"`
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, errs.Wrap(err, errs.CodeServerRequestInvalid, "invalid reminder json"))
		return
	}

	rem := model.Reminder{
		ID:              req.ID,
		StoreType:       model.StoreType(req.StoreType),
		Title:           req.Title,
		Memo:            req.Memo,
		TriggerDistance: s.defaultTriggerDistance,
		IsActive:        true,
	}
	if req.TriggerDistance != nil {
		rem.TriggerDistance = *req.TriggerDistance
	}
	if req.IsActive != nil {
		rem.IsActive = *req.IsActive
	}

	if err := s.engine.RegisterReminder(r.Context(), rem); err != nil {
		s.writeError(w, err)
		return
	}
	status := http.StatusCreated
	if !rem.IsActive {
		status = http.StatusOK
	}
	writeJSON(w, status, rem.Normalize())
}

func (s *Server) handleUnregisterReminder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.engine.UnregisterReminder(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errs.New(errs.CodeServerRequestInvalid, name+" must be a non-negative integer",
			errs.Field(name, raw))
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := errs.HTTPStatus(err)
	if errs.HasCode(err, errs.CodeLocationNotMonitoring) {
		status = http.StatusConflict
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	body := map[string]any{"error": err.Error()}
	if code := errs.CodeOf(err); code != "" {
		body["code"] = code
	}
	writeJSON(w, status, body)
}
