package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mikeeai/adsdash/pkg/chat"
	"github.com/mikeeai/adsdash/pkg/compose"
	"github.com/mikeeai/adsdash/pkg/hub"
	"github.com/mikeeai/adsdash/pkg/perf"
	"github.com/mikeeai/adsdash/pkg/settings"
	"github.com/mikeeai/adsdash/pkg/telemetry"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"service": "adsdash",
		"version": Version,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusPayload is the snapshot shape shared by the status endpoint and the
// WebSocket pushes.
type statusPayload struct {
	Services []compose.ServiceDescriptor `json:"services"`
	Running  int                         `json:"running"`
}

func (s *Server) statusSnapshot(ctx context.Context) (statusPayload, error) {
	descs, err := s.fleet.StatusOfAll(ctx)
	if err != nil {
		return statusPayload{}, err
	}
	running := 0
	for _, d := range descs {
		if d.Running() {
			running++
		}
	}
	telemetry.MetricRunningServices.Set(float64(running))
	return statusPayload{Services: descs, Running: running}, nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.statusSnapshot(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) serviceAction(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")

		var err error
		switch action {
		case "start":
			_, err = s.fleet.Up(r.Context(), name)
		case "stop":
			_, err = s.fleet.Stop(r.Context(), name)
		case "restart":
			_, err = s.fleet.Restart(r.Context(), name)
		}
		if err != nil {
			var unknown *compose.ErrUnknownService
			if errors.As(err, &unknown) {
				respondError(w, http.StatusNotFound, err.Error())
				return
			}
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}

		telemetry.MetricServiceCommands.WithLabelValues(action).Inc()
		s.broadcastStatus(r.Context())
		respondJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"service": name,
			"action":  action,
		})
	}
}

func (s *Server) handleStartAll(w http.ResponseWriter, r *http.Request) {
	if _, err := s.fleet.UpAll(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	telemetry.MetricServiceCommands.WithLabelValues("start-all").Inc()
	s.broadcastStatus(r.Context())
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "action": "start-all"})
}

func (s *Server) handleStopAll(w http.ResponseWriter, r *http.Request) {
	if _, err := s.fleet.StopAll(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	telemetry.MetricServiceCommands.WithLabelValues("stop-all").Inc()
	s.broadcastStatus(r.Context())
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "action": "stop-all"})
}

// broadcastStatus pushes a fresh snapshot to every WebSocket subscriber after
// a control action. Best effort; a failed read just skips the push.
func (s *Server) broadcastStatus(ctx context.Context) {
	snap, err := s.statusSnapshot(ctx)
	if err != nil {
		s.logger.Printf("status broadcast skipped: %v", err)
		return
	}
	s.hub.Broadcast(hub.Event{Type: "status", Payload: snap})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	lines := 100
	if v := r.URL.Query().Get("lines"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "lines must be a positive integer")
			return
		}
		lines = n
	}

	text, err := s.fleet.Logs(r.Context(), name, lines)
	if err != nil {
		var unknown *compose.ErrUnknownService
		if errors.As(err, &unknown) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"service": name, "lines": lines, "logs": text})
}

type chatRequest struct {
	Message string `json:"message"`
	APIKey  string `json:"apiKey"`
	Model   string `json:"model"`
}

// handleChat validates input, then always answers 200: upstream and tool
// failures ride inside the reply text.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	apiKey := req.APIKey
	if apiKey == "" {
		stored, err := s.store.Load()
		if err != nil {
			s.logger.Printf("settings load for chat: %v", err)
		}
		apiKey = stored.OpenAIKey
	}

	reply, err := s.chat.Handle(r.Context(), req.Message, apiKey, req.Model)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyMessage) {
			respondError(w, http.StatusBadRequest, "message must not be empty")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"response": reply})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	stored, err := s.store.Load()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, stored)
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var update settings.Settings
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	saved, err := s.store.Save(update)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, saved)
}

// handleScore derives CTR/CPC/CPA and the weighted score from raw counters
// passed as query parameters. Lets the dashboard run what-if scoring without
// touching stored campaign data.
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	m := perf.Metrics{}
	var err error
	if m.Impressions, err = queryInt(q.Get("impressions")); err != nil {
		respondError(w, http.StatusBadRequest, "impressions must be an integer")
		return
	}
	if m.Clicks, err = queryInt(q.Get("clicks")); err != nil {
		respondError(w, http.StatusBadRequest, "clicks must be an integer")
		return
	}
	if m.Conversions, err = queryInt(q.Get("conversions")); err != nil {
		respondError(w, http.StatusBadRequest, "conversions must be an integer")
		return
	}
	if v := q.Get("spend"); v != "" {
		if m.Spend, err = strconv.ParseFloat(v, 64); err != nil {
			respondError(w, http.StatusBadRequest, "spend must be a number")
			return
		}
	}
	m.Derive()
	respondJSON(w, http.StatusOK, m)
}

func queryInt(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
