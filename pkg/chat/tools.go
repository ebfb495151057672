package chat

import (
	"fmt"
	"strings"
)

// Parameter describes one named tool argument.
type Parameter struct {
	Name        string
	Type        string
	Description string
	Default     any
}

// ToolDefinition is a named action the engine can invoke on the user's behalf.
// The set is fixed at process start.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  []Parameter
}

const (
	ToolCreateAds          = "create_ads"
	ToolCheckServiceHealth = "check_service_health"
	ToolRecentAdsCount     = "get_recent_ads_count"
)

// Tools is the fixed tool set, in the order it is listed to the model.
var Tools = []ToolDefinition{
	{
		Name:        ToolCreateAds,
		Description: "Create new Meta ad campaigns through the master service. Ad creation involves image generation and remote API calls, so it can take several minutes.",
		Parameters: []Parameter{
			{Name: "ads_to_create", Type: "integer", Description: "How many ads to create", Default: 1},
			{Name: "daily_budget", Type: "integer", Description: "Daily budget in cents", Default: 750},
		},
	},
	{
		Name:        ToolCheckServiceHealth,
		Description: "Check the health endpoint of every remote microservice and report healthy/unhealthy/unreachable per service.",
	},
	{
		Name:        ToolRecentAdsCount,
		Description: "Estimate how many ads were created recently by scanning service logs. The count is a heuristic approximation, not an exact figure.",
		Parameters: []Parameter{
			{Name: "hours", Type: "integer", Description: "Look-back window in hours", Default: 24},
		},
	},
}

// Listing renders the tool set as prompt text.
func Listing() string {
	var b strings.Builder
	for _, t := range Tools {
		fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
		for _, p := range t.Parameters {
			fmt.Fprintf(&b, "    %s (%s, default %v): %s\n", p.Name, p.Type, p.Default, p.Description)
		}
	}
	return b.String()
}

// Invocation is a parsed tool call from the model's reply.
type Invocation struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

// intArg extracts an integer argument, falling back to def. JSON numbers
// decode as float64.
func (inv *Invocation) intArg(name string, def int) int {
	v, ok := inv.Args[name]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return def
}
