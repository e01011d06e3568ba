package tenant

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/nullpass/nullpass/internal/models"
)

// ServiceConfig describes one downstream product consuming identities.
type ServiceConfig struct {
	Service            models.Service `json:"service"`
	Name               string         `json:"name"`
	PolarWebhookSecret string         `json:"polar_webhook_secret"`
	WebhookPath        string         `json:"webhook_path"`
}

type ServicesFile struct {
	Services []ServiceConfig `json:"services"`
}

type Registry struct {
	mu       sync.RWMutex
	services map[models.Service]*ServiceConfig
}

func NewRegistry() *Registry {
	return &Registry{
		services: make(map[models.Service]*ServiceConfig),
	}
}

// Default registers every known service with its secret taken from the
// <SERVICE>_POLAR_SECRET environment variable.
func Default(getenv func(string) string) *Registry {
	r := NewRegistry()
	for _, svc := range models.AllServices {
		r.Register(&ServiceConfig{
			Service:            svc,
			Name:               string(svc),
			PolarWebhookSecret: getenv(string(svc) + "_POLAR_SECRET"),
		})
	}
	return r
}

// LoadFromFile overlays the JSON file at path on top of Default. Secrets
// left empty in the file keep their environment value.
func LoadFromFile(path string, getenv func(string) string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read services config: %w", err)
	}

	var file ServicesFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse services config: %w", err)
	}

	registry := Default(getenv)
	for i := range file.Services {
		cfg := &file.Services[i]
		if _, ok := models.ParseService(string(cfg.Service)); !ok {
			return nil, fmt.Errorf("unknown service %q in services config", cfg.Service)
		}
		if cfg.PolarWebhookSecret == "" {
			cfg.PolarWebhookSecret = registry.WebhookSecret(cfg.Service)
		}
		registry.Register(cfg)
	}
	return registry, nil
}

func (r *Registry) Register(cfg *ServiceConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cfg.WebhookPath == "" {
		cfg.WebhookPath = strings.ToLower(string(cfg.Service))
	}
	r.services[cfg.Service] = cfg
}

func (r *Registry) Get(svc models.Service) *ServiceConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.services[svc]
}

// ByWebhookPath resolves the :service segment of a webhook URL.
func (r *Registry) ByWebhookPath(segment string) *ServiceConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	segment = strings.ToLower(segment)
	for _, cfg := range r.services {
		if cfg.WebhookPath == segment {
			return cfg
		}
	}
	return nil
}

func (r *Registry) Exists(svc models.Service) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.services[svc]
	return ok
}

// All returns the registered services ordered by identifier.
func (r *Registry) All() []*ServiceConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*ServiceConfig, 0, len(r.services))
	for _, cfg := range r.services {
		result = append(result, cfg)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Service < result[j].Service })
	return result
}

func (r *Registry) WebhookSecret(svc models.Service) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.services[svc]
	if !ok {
		return ""
	}
	return cfg.PolarWebhookSecret
}
