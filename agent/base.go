package agent

import "github.com/hupe1980/staffmesh/core"

// Base carries agent identity and capability metadata. Embed it and add
// an Invoke method to satisfy core.Agent.
type Base struct {
	name         string
	displayName  string
	kind         core.AgentKind
	capabilities []core.Capability
	dependsOn    []string
	active       bool
}

// Name implements core.Agent.
func (b *Base) Name() string { return b.name }

// DisplayName implements core.Agent.
func (b *Base) DisplayName() string { return b.displayName }

// Kind implements core.Agent.
func (b *Base) Kind() core.AgentKind { return b.kind }

// Capabilities implements core.Agent.
func (b *Base) Capabilities() []core.Capability { return b.capabilities }

// DependsOn implements core.Agent.
func (b *Base) DependsOn() []string { return b.dependsOn }

// Active implements core.Agent.
func (b *Base) Active() bool { return b.active }
