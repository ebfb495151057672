package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mikeeai/adsdash/pkg/compose"
)

const (
	createAdsTimeout   = 600 * time.Second
	healthProbeTimeout = 5 * time.Second
)

// adsLogMarkers are the substrings counted (case-insensitively) when
// estimating recent ad creation from log text.
var adsLogMarkers = []string{
	"ad created",
	"campaign created",
	"creative uploaded",
}

// LogSource supplies windowed log text for one service.
type LogSource interface {
	LogsSince(ctx context.Context, name string, hours int) (string, error)
}

// Dispatcher executes tool invocations against the remote microservices and
// the compose project. Tool results are always strings handed back to the
// model for the second completion; operational failures become structured
// error text, never Go errors.
type Dispatcher struct {
	endpoints map[string]string
	logs      LogSource
	client    *http.Client
}

// NewDispatcher builds a dispatcher over the configured service endpoints.
func NewDispatcher(endpoints map[string]string, logs LogSource) *Dispatcher {
	return &Dispatcher{
		endpoints: endpoints,
		logs:      logs,
		client:    &http.Client{},
	}
}

// Dispatch runs one invocation and returns its result text.
func (d *Dispatcher) Dispatch(ctx context.Context, inv *Invocation) string {
	switch inv.Tool {
	case ToolCreateAds:
		return d.createAds(ctx, inv)
	case ToolCheckServiceHealth:
		return d.checkServiceHealth(ctx)
	case ToolRecentAdsCount:
		return d.recentAdsCount(ctx, inv)
	default:
		return fmt.Sprintf("Unknown tool: %s", inv.Tool)
	}
}

func (d *Dispatcher) createAds(ctx context.Context, inv *Invocation) string {
	endpoint, ok := d.endpoints["master"]
	if !ok {
		return errorResult("no endpoint configured for the master service")
	}

	payload, _ := json.Marshal(map[string]int{
		"ads_to_create": inv.intArg("ads_to_create", 1),
		"daily_budget":  inv.intArg("daily_budget", 750),
	})

	// Ad creation drives image generation and remote API calls end to end,
	// so the deadline is far above the usual probe timeouts.
	ctx, cancel := context.WithTimeout(ctx, createAdsTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/execute", bytes.NewReader(payload))
	if err != nil {
		return errorResult(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return errorResult(fmt.Sprintf("master service unreachable: %v", err))
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return errorResult(fmt.Sprintf("master service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}
	return string(body)
}

// checkServiceHealth probes every configured service concurrently. The result
// always carries one entry per service; a slow probe bounds the call at the
// single probe timeout, not the sum. Probes never fail the whole call, so a
// plain WaitGroup over an indexed slice suffices.
func (d *Dispatcher) checkServiceHealth(ctx context.Context) string {
	states := make([]string, len(compose.ServiceNames))

	var wg sync.WaitGroup
	for i, name := range compose.ServiceNames {
		i, name := i, name
		wg.Add(1)
		go func() {
			defer wg.Done()
			states[i] = d.probe(ctx, name)
		}()
	}
	wg.Wait()

	health := make(map[string]string, len(compose.ServiceNames))
	for i, name := range compose.ServiceNames {
		health[name] = states[i]
	}
	out, _ := json.Marshal(map[string]any{"services": health})
	return string(out)
}

func (d *Dispatcher) probe(ctx context.Context, name string) string {
	endpoint, ok := d.endpoints[name]
	if !ok {
		return "unreachable"
	}

	ctx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/health", nil)
	if err != nil {
		return "unreachable"
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return "unreachable"
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode == http.StatusOK {
		return "healthy"
	}
	return "unhealthy"
}

func (d *Dispatcher) recentAdsCount(ctx context.Context, inv *Invocation) string {
	hours := inv.intArg("hours", 24)
	if hours <= 0 {
		hours = 24
	}

	text, err := d.logs.LogsSince(ctx, "master", hours)
	if err != nil {
		return errorResult(fmt.Sprintf("reading service logs: %v", err))
	}

	lower := strings.ToLower(text)
	count := 0
	for _, marker := range adsLogMarkers {
		count += strings.Count(lower, marker)
	}

	out, _ := json.Marshal(map[string]any{
		"hours":                   hours,
		"approximate_ads_created": count,
		"note":                    "heuristic count from service logs",
	})
	return string(out)
}

func errorResult(msg string) string {
	out, _ := json.Marshal(map[string]string{"error": msg})
	return string(out)
}
