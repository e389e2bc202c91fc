package ai

import (
	"fmt"
	"strings"

	"github.com/campfire-chat/campfire/internal/profile"
)

// Agent is one configured assistant identity. Selector is the client-facing
// name; AssistantID is the provider-side identity the generation runs under.
type Agent struct {
	Selector    string
	AssistantID string
	Model       string
}

// SystemPrompt returns the system turn content that binds a generation to
// this agent identity. The chat completions surface carries no assistant_id
// parameter, so the identity travels in-band as the leading system turn.
func (a *Agent) SystemPrompt() string {
	return fmt.Sprintf("You are the %s assistant (identity %s). Stay in this persona for the whole conversation.", a.Selector, a.AssistantID)
}

// Registry resolves agent selectors against the configured set.
type Registry struct {
	agents          map[string]*Agent
	defaultSelector string
}

// NewRegistryFromProfile parses the profile's agent configuration.
// The serialized form is "selector=assistant_id,selector=assistant_id".
func NewRegistryFromProfile(p *profile.Profile) (*Registry, error) {
	agents := make(map[string]*Agent)

	for _, pair := range strings.Split(p.Agents, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		selector, assistantID, ok := strings.Cut(pair, "=")
		selector = strings.TrimSpace(selector)
		assistantID = strings.TrimSpace(assistantID)
		if !ok || selector == "" || assistantID == "" {
			return nil, fmt.Errorf("malformed agent entry %q, want selector=assistant_id", pair)
		}
		if _, exists := agents[selector]; exists {
			return nil, fmt.Errorf("duplicate agent selector %q", selector)
		}
		agents[selector] = &Agent{
			Selector:    selector,
			AssistantID: assistantID,
			Model:       p.ChatModel,
		}
	}

	defaultSelector := p.DefaultAgent
	if defaultSelector != "" {
		if _, ok := agents[defaultSelector]; !ok {
			return nil, fmt.Errorf("default agent %q is not configured", defaultSelector)
		}
	}

	return &Registry{
		agents:          agents,
		defaultSelector: defaultSelector,
	}, nil
}

// Resolve maps a client-supplied selector to a configured agent. An empty
// selector resolves to the default agent. Unknown selectors are rejected
// explicitly rather than falling through to the default.
func (r *Registry) Resolve(selector string) (*Agent, bool) {
	if selector == "" {
		selector = r.defaultSelector
	}
	if selector == "" {
		return nil, false
	}
	agent, ok := r.agents[selector]
	return agent, ok
}

// HasDefault reports whether a default agent is configured.
func (r *Registry) HasDefault() bool {
	return r.defaultSelector != ""
}

// Selectors returns the configured selector names.
func (r *Registry) Selectors() []string {
	selectors := make([]string, 0, len(r.agents))
	for s := range r.agents {
		selectors = append(selectors, s)
	}
	return selectors
}
