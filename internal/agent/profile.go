// Package agent defines the advisory agent profiles: each profile is a
// system prompt, a permitted action set and a tool table. One engine in
// internal/service drives every profile.
package agent

import (
	"github.com/barbarosson/advisory/internal/domain"
	"github.com/barbarosson/advisory/internal/tools"
)

// Profile describes one agent exposed at /v1/agents/:agent_id.
type Profile struct {
	ID      string
	Name    string
	Actions []domain.Action
	Tools   *tools.Registry

	systemPrompt func(date, language string) string
}

// NewProfile assembles a profile from its parts.
func NewProfile(id, name string, actions []domain.Action, registry *tools.Registry, prompt func(date, language string) string) *Profile {
	return &Profile{
		ID:           id,
		Name:         name,
		Actions:      actions,
		Tools:        registry,
		systemPrompt: prompt,
	}
}

// SystemPrompt renders the profile's system instruction for the current
// date and language preference.
func (p *Profile) SystemPrompt(date, language string) string {
	return p.systemPrompt(date, language)
}

// AllowsAction reports whether the profile accepts the given action.
func (p *Profile) AllowsAction(a domain.Action) bool {
	for _, allowed := range p.Actions {
		if allowed == a {
			return true
		}
	}
	return false
}

// ActionNames returns the accepted action set for error messages.
func (p *Profile) ActionNames() []string {
	names := make([]string, len(p.Actions))
	for i, a := range p.Actions {
		names[i] = string(a)
	}
	return names
}
