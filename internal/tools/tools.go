// Package tools holds the verification tool contract, the concrete tool
// clients, and the static per-entity-type roster the orchestrator dispatches
// against.
package tools

import (
	"context"
	"fmt"

	"github.com/scamlens/orchestrator/internal/extraction"
)

// Tool names are stable identifiers; they appear in evidence records,
// verdicts and metrics.
const (
	NameScamDB           = "scamdb"
	NamePhoneValidator   = "phone_validator"
	NameDomainReputation = "domain_reputation"
	NameWebSearch        = "web_search"
	NameCompanyRegistry  = "company_registry"
)

// Tool is one verification check. Call must respect ctx cancellation and
// return a flat, serializable payload. Implementations are safe for
// concurrent use.
type Tool interface {
	Name() string
	Call(ctx context.Context, value string) (map[string]interface{}, error)
}

// roster maps entity types to the tools that apply to them. Entity types
// not listed (payments, amounts) carry no roster; they reach the reasoner
// as context only.
var roster = map[extraction.EntityType][]string{
	extraction.EntityPhone:   {NameScamDB, NamePhoneValidator, NameWebSearch},
	extraction.EntityURL:     {NameScamDB, NameDomainReputation, NameWebSearch},
	extraction.EntityEmail:   {NameScamDB, NameWebSearch},
	extraction.EntityCompany: {NameCompanyRegistry, NameScamDB, NameWebSearch},
}

// RosterFor returns the tool names applicable to an entity type, in
// dispatch order. Returns nil for types with no roster.
func RosterFor(t extraction.EntityType) []string {
	names := roster[t]
	if names == nil {
		return nil
	}
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// Registry holds the constructed tool set. Construct once at startup and
// share; tools hold their own connection pools.
type Registry struct {
	byName map[string]Tool
}

// NewRegistry builds a registry from the given tools.
func NewRegistry(ts ...Tool) *Registry {
	r := &Registry{byName: make(map[string]Tool, len(ts))}
	for _, t := range ts {
		r.byName[t.Name()] = t
	}
	return r
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, error) {
	t, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("tool %q not registered", name)
	}
	return t, nil
}

// Names returns all registered tool names.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.byName))
	for n := range r.byName {
		out = append(out, n)
	}
	return out
}
