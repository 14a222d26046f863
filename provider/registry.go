package provider

import (
	"fmt"
	"sync"
)

// Service kinds recognized by the factory. The string form is what the
// account store persists in the "service" key.
const (
	ServiceTodoist = "todoist"
)

// ServiceInfo describes a recognized service kind for display purposes.
type ServiceInfo struct {
	Kind        string
	DisplayName string
	IconName    string
}

// Option configures a provider at construction time. Concrete providers
// interpret the options they understand and ignore the rest.
type Option func(*Options)

// Options holds cross-provider construction settings.
type Options struct {
	// BaseURL overrides the remote API base URL (used by tests).
	BaseURL string
}

// WithBaseURL overrides the provider's remote API base URL.
func WithBaseURL(url string) Option {
	return func(o *Options) {
		o.BaseURL = url
	}
}

// Constructor builds a TaskProvider bound to one account. The account's
// credential must already be resolved.
type Constructor func(info AccountInfo, opts ...Option) (TaskProvider, error)

var (
	registryMu   sync.RWMutex
	constructors = make(map[string]Constructor)
	services     = make(map[string]ServiceInfo)
)

// Register adds a service kind to the factory. Providers call this in their
// init() function.
func Register(info ServiceInfo, constructor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	constructors[info.Kind] = constructor
	services[info.Kind] = info
}

// New constructs a provider for the account's service kind. Unrecognized
// kinds return ErrUnknownService.
func New(info AccountInfo, opts ...Option) (TaskProvider, error) {
	registryMu.RLock()
	constructor, ok := constructors[info.Service]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownService, info.Service)
	}
	return constructor(info, opts...)
}

// Known reports whether the service kind has a registered provider.
func Known(kind string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := constructors[kind]
	return ok
}

// Services returns the recognized service kinds.
func Services() []ServiceInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]ServiceInfo, 0, len(services))
	for _, info := range services {
		result = append(result, info)
	}
	return result
}
