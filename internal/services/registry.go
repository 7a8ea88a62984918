// Package services implements the WisataChat conversational session engine:
// application settings, the chat transport, the session store, the render
// pipeline, and the voice input adapter. Services register themselves with
// the registry and are initialized together at startup.
package services

import (
	"fmt"
	"sync"

	"wisatachat/pkg/wisatatypes"
)

// Registry manages service registration and lifecycle for WisataChat
// services.
type Registry struct {
	mu       sync.RWMutex
	services map[string]wisatatypes.Service
}

// NewRegistry creates a new service registry with an empty service map.
func NewRegistry() *Registry {
	return &Registry{
		services: make(map[string]wisatatypes.Service),
	}
}

// RegisterService adds a service to the registry, returning an error if one
// with the same name is already registered.
func (r *Registry) RegisterService(service wisatatypes.Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := service.Name()
	if _, exists := r.services[name]; exists {
		return fmt.Errorf("service %s already registered", name)
	}

	r.services[name] = service
	return nil
}

// GetService retrieves a service by name, returning an error if not found.
func (r *Registry) GetService(name string) (wisatatypes.Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	service, exists := r.services[name]
	if !exists {
		return nil, fmt.Errorf("service %s not found", name)
	}

	return service, nil
}

// InitializeAll initializes every registered service. Settings must come up
// first: the transport, session store, and voice adapter all read from it.
func (r *Registry) InitializeAll() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if settings, exists := r.services["settings"]; exists {
		if err := settings.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize service settings: %w", err)
		}
	}

	for name, service := range r.services {
		if name == "settings" {
			continue
		}
		if err := service.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize service %s: %w", name, err)
		}
	}

	return nil
}

// GlobalRegistry is the global service registry instance used throughout
// WisataChat.
var GlobalRegistry = NewRegistry()

// globalRegistryMu protects access to the GlobalRegistry variable itself.
var globalRegistryMu sync.RWMutex

// GetGlobalRegistry returns the global service registry in a thread-safe
// manner.
func GetGlobalRegistry() *Registry {
	globalRegistryMu.RLock()
	defer globalRegistryMu.RUnlock()
	return GlobalRegistry
}

// SetGlobalRegistry replaces the global service registry in a thread-safe
// manner. Used by tests to install an isolated registry.
func SetGlobalRegistry(registry *Registry) {
	globalRegistryMu.Lock()
	defer globalRegistryMu.Unlock()
	GlobalRegistry = registry
}

// GetGlobalSettingsService returns the registered settings service.
func GetGlobalSettingsService() (*SettingsService, error) {
	service, err := GetGlobalRegistry().GetService("settings")
	if err != nil {
		return nil, err
	}
	settings, ok := service.(*SettingsService)
	if !ok {
		return nil, fmt.Errorf("service settings has unexpected type %T", service)
	}
	return settings, nil
}

// GetGlobalChatClient returns the registered chat transport service.
func GetGlobalChatClient() (*ChatClient, error) {
	service, err := GetGlobalRegistry().GetService("chat_client")
	if err != nil {
		return nil, err
	}
	client, ok := service.(*ChatClient)
	if !ok {
		return nil, fmt.Errorf("service chat_client has unexpected type %T", service)
	}
	return client, nil
}

// GetGlobalSessionService returns the registered session store service.
func GetGlobalSessionService() (*SessionService, error) {
	service, err := GetGlobalRegistry().GetService("session")
	if err != nil {
		return nil, err
	}
	sessions, ok := service.(*SessionService)
	if !ok {
		return nil, fmt.Errorf("service session has unexpected type %T", service)
	}
	return sessions, nil
}

// GetGlobalRenderService returns the registered render pipeline service.
func GetGlobalRenderService() (*RenderService, error) {
	service, err := GetGlobalRegistry().GetService("render")
	if err != nil {
		return nil, err
	}
	render, ok := service.(*RenderService)
	if !ok {
		return nil, fmt.Errorf("service render has unexpected type %T", service)
	}
	return render, nil
}

// GetGlobalVoiceService returns the registered voice input service.
func GetGlobalVoiceService() (*VoiceService, error) {
	service, err := GetGlobalRegistry().GetService("voice")
	if err != nil {
		return nil, err
	}
	voice, ok := service.(*VoiceService)
	if !ok {
		return nil, fmt.Errorf("service voice has unexpected type %T", service)
	}
	return voice, nil
}
