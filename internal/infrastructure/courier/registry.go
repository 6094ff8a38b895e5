package courier

import (
	"sort"

	"github.com/oms/backend/internal/domain/integration"
	"github.com/oms/backend/internal/domain/shared"
)

// Registry resolves courier gateways by name
type Registry struct {
	gateways map[string]integration.CourierGateway
}

// NewRegistry creates a registry over the given gateways
func NewRegistry(gateways ...integration.CourierGateway) *Registry {
	r := &Registry{gateways: make(map[string]integration.CourierGateway)}
	for _, g := range gateways {
		r.gateways[g.Name()] = g
	}
	return r
}

// Register adds or replaces a gateway
func (r *Registry) Register(gateway integration.CourierGateway) {
	r.gateways[gateway.Name()] = gateway
}

// Get returns the gateway for a courier, or an error if unknown
func (r *Registry) Get(name string) (integration.CourierGateway, error) {
	g, ok := r.gateways[name]
	if !ok {
		return nil, shared.NewDomainError("INVALID_INPUT", "Unknown courier: "+name)
	}
	return g, nil
}

// Names lists the registered couriers in stable order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.gateways))
	for name := range r.gateways {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
