package roster

import (
	"context"
	"sort"
	"sync"

	"github.com/timeplus-io/lead-alert-gateway/pkg/models"
)

// Provider returns the responders currently available to take a lead
type Provider interface {
	// Available returns the on-shift responders; an empty roster is not an error
	Available(ctx context.Context) ([]models.Responder, error)
	// Get returns one responder profile whether or not they are on shift
	Get(ctx context.Context, id string) (models.Responder, bool, error)
}

// Editor is implemented by providers whose roster can be changed at runtime
type Editor interface {
	Add(ctx context.Context, r models.Responder) error
	Remove(ctx context.Context, id string) error
}

// StaticProvider serves a roster fixed at startup from configuration.
// Remove takes a responder off shift; the profile stays readable through Get.
type StaticProvider struct {
	mu        sync.RWMutex
	profiles  map[string]models.Responder
	available map[string]bool
}

// NewStaticProvider creates a provider with every responder on shift
func NewStaticProvider(responders []models.Responder) *StaticProvider {
	p := &StaticProvider{
		profiles:  make(map[string]models.Responder, len(responders)),
		available: make(map[string]bool, len(responders)),
	}
	for _, r := range responders {
		p.profiles[r.ID] = r
		p.available[r.ID] = true
	}
	return p
}

// Available implements Provider
func (p *StaticProvider) Available(ctx context.Context) ([]models.Responder, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]models.Responder, 0, len(p.available))
	for id := range p.available {
		out = append(out, p.profiles[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Get implements Provider
func (p *StaticProvider) Get(ctx context.Context, id string) (models.Responder, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	r, ok := p.profiles[id]
	return r, ok, nil
}

// Add implements Editor
func (p *StaticProvider) Add(ctx context.Context, r models.Responder) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profiles[r.ID] = r
	p.available[r.ID] = true
	return nil
}

// Remove implements Editor
func (p *StaticProvider) Remove(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.available, id)
	return nil
}
