// Package chat runs the dashboard's conversational interface: one user
// message in, one assistant reply out, with an optional tool dispatch in
// between.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mikeeai/adsdash/pkg/compose"
	"github.com/mikeeai/adsdash/pkg/model"
	"github.com/mikeeai/adsdash/pkg/telemetry"
)

const completionTimeout = 60 * time.Second

// ErrEmptyMessage rejects blank user input before any upstream call.
var ErrEmptyMessage = errors.New("chat: empty message")

// fallbackReply is returned when no completion API credential is available.
// No upstream or tool call is made in that case.
const fallbackReply = "No OpenAI API key is configured. Add one under Settings to enable the chat assistant. " +
	"You can still start, stop and restart services from the dashboard controls."

// CompletionClient is the slice of the model client the engine needs.
type CompletionClient interface {
	ChatCompletion(ctx context.Context, apiKey string, req model.ChatRequest) (*model.ChatResponse, error)
}

// StatusSource supplies the fleet snapshot embedded in the system prompt.
type StatusSource interface {
	StatusOfAll(ctx context.Context) ([]compose.ServiceDescriptor, error)
}

// Engine drives a chat turn through its phases: first completion, optional
// tool dispatch, second completion. Upstream failures degrade into reply
// text; the only error Handle returns is input validation.
type Engine struct {
	client       CompletionClient
	status       StatusSource
	dispatcher   *Dispatcher
	defaultModel string
	logger       *log.Logger
}

// NewEngine wires the engine. A nil logger discards nothing and writes to the
// standard logger.
func NewEngine(client CompletionClient, status StatusSource, dispatcher *Dispatcher, defaultModel string, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		client:       client,
		status:       status,
		dispatcher:   dispatcher,
		defaultModel: defaultModel,
		logger:       logger,
	}
}

// Handle runs one chat turn and returns the assistant reply.
func (e *Engine) Handle(ctx context.Context, message, apiKey, modelID string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		telemetry.MetricChatTurns.WithLabelValues("empty").Inc()
		return "", ErrEmptyMessage
	}
	if apiKey == "" {
		telemetry.MetricChatTurns.WithLabelValues("no_credential").Inc()
		return fallbackReply, nil
	}
	if modelID == "" {
		modelID = e.defaultModel
	}

	turnID := uuid.NewString()
	e.logger.Printf("chat turn %s: model=%s", turnID, modelID)

	system := e.systemPrompt(ctx)
	messages := []model.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: message},
	}

	reply, err := e.complete(ctx, apiKey, modelID, messages)
	if err != nil {
		telemetry.MetricChatTurns.WithLabelValues("upstream_error").Inc()
		e.logger.Printf("chat turn %s: first completion failed: %v", turnID, err)
		return upstreamReply(err), nil
	}

	inv, ok := parseToolCall(reply)
	if !ok {
		telemetry.MetricChatTurns.WithLabelValues("text").Inc()
		return reply, nil
	}

	e.logger.Printf("chat turn %s: dispatching tool %s", turnID, inv.Tool)
	telemetry.MetricToolDispatches.WithLabelValues(inv.Tool).Inc()
	result := e.dispatcher.Dispatch(ctx, inv)

	messages = append(messages,
		model.Message{Role: "assistant", Content: reply},
		model.Message{Role: "user", Content: "Tool result:\n" + result + "\n\nSummarize this result for the user in plain language."},
	)

	final, err := e.complete(ctx, apiKey, modelID, messages)
	if err != nil {
		telemetry.MetricChatTurns.WithLabelValues("upstream_error").Inc()
		e.logger.Printf("chat turn %s: second completion failed: %v", turnID, err)
		return upstreamReply(err), nil
	}

	telemetry.MetricChatTurns.WithLabelValues("tool").Inc()
	return final, nil
}

func (e *Engine) complete(ctx context.Context, apiKey, modelID string, messages []model.Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, completionTimeout)
	defer cancel()

	resp, err := e.client.ChatCompletion(ctx, apiKey, model.ChatRequest{
		Model:    modelID,
		Messages: messages,
	})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// systemPrompt embeds a best-effort fleet snapshot and the tool listing. A
// failed status read degrades to a note, it never blocks the turn.
func (e *Engine) systemPrompt(ctx context.Context) string {
	var b strings.Builder
	b.WriteString("You are the assistant for a Meta ads automation dashboard. ")
	b.WriteString("You help the operator manage four containerized services and their ad campaigns.\n\n")

	b.WriteString("Current service status:\n")
	descs, err := e.status.StatusOfAll(ctx)
	if err != nil {
		b.WriteString("  (status unavailable)\n")
	} else {
		for _, d := range descs {
			fmt.Fprintf(&b, "  %s: %s\n", d.Name, d.Status)
		}
	}

	b.WriteString("\nYou can invoke these tools:\n")
	b.WriteString(Listing())
	b.WriteString("\nTo invoke a tool, reply with ONLY a JSON object of the form ")
	b.WriteString(`{"tool": "<name>", "args": {...}} and nothing else. `)
	b.WriteString("For anything else, reply in plain text.")
	return b.String()
}

// parseToolCall recognizes a reply that is a tool invocation. Anything that
// does not both look like JSON and carry a known shape passes through as
// plain text.
func parseToolCall(reply string) (*Invocation, bool) {
	trimmed := strings.TrimSpace(reply)
	if !strings.HasPrefix(trimmed, "{") || !strings.Contains(trimmed, `"tool"`) {
		return nil, false
	}
	var inv Invocation
	if err := json.Unmarshal([]byte(trimmed), &inv); err != nil || inv.Tool == "" {
		return nil, false
	}
	return &inv, true
}

func upstreamReply(err error) string {
	var upstream *model.UpstreamError
	if errors.As(err, &upstream) {
		return "The completion API request failed: " + upstream.Error()
	}
	return "The completion API request failed: " + err.Error()
}
