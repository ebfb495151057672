package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"github.com/mikeeai/adsdash/pkg/config"
	"github.com/mikeeai/adsdash/pkg/hub"
	"github.com/mikeeai/adsdash/pkg/telemetry"
)

// handleWS upgrades the connection and serves it until the client goes away.
// Each connection gets a write loop draining its hub queue, a snapshot push
// ticker, and a read loop answering ping with pong.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{}
	if len(s.cfg.AllowedOrigins) == 0 || s.cfg.AllowedOrigins[0] == "*" {
		opts.InsecureSkipVerify = true
	} else {
		opts.OriginPatterns = s.cfg.AllowedOrigins
	}

	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		s.logger.Printf("ws accept: %v", err)
		return
	}

	client := s.hub.Register(conn)
	telemetry.MetricWSClients.Inc()
	defer func() {
		s.hub.Remove(client)
		client.Close(websocket.StatusNormalClosure, "")
		telemetry.MetricWSClients.Dec()
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go func() {
		defer cancel()
		_ = client.WriteLoop(ctx)
	}()
	go s.pushLoop(ctx, client)

	for {
		_, data, err := client.Read(ctx)
		if err != nil {
			return
		}
		if strings.TrimSpace(string(data)) == "ping" {
			s.hub.Unicast(client, hub.Event{Type: "pong"})
		}
	}
}

// pushLoop sends a status snapshot immediately and then on every tick.
func (s *Server) pushLoop(ctx context.Context, client *hub.Client) {
	every := s.cfg.StatusPushEvery
	if every <= 0 {
		every = config.DefaultStatusPushEvery
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	s.pushSnapshot(ctx, client)
	for {
		select {
		case <-ticker.C:
			s.pushSnapshot(ctx, client)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) pushSnapshot(ctx context.Context, client *hub.Client) {
	snap, err := s.statusSnapshot(ctx)
	if err != nil {
		s.logger.Printf("ws snapshot skipped: %v", err)
		return
	}
	s.hub.Unicast(client, hub.Event{Type: "status", Payload: snap})
}
