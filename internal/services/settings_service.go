package services

import (
	"encoding/json"
	"fmt"
	"sync"

	"wisatachat/internal/logger"
	"wisatachat/internal/store"
	"wisatachat/pkg/wisatatypes"
)

// SettingsService owns the process-wide application settings: the bearer
// credential, the cached user profile, and the language preference. All
// three are hydrated from the durable store at initialization and read by
// other services, but written only through the owner methods here:
// credential and profile by login/logout, language by the settings action.
type SettingsService struct {
	initialized bool
	store       *store.Store

	mu         sync.RWMutex
	credential string
	profile    wisatatypes.UserProfile
	language   wisatatypes.Language
}

// NewSettingsService creates a SettingsService backed by the given store.
func NewSettingsService(st *store.Store) *SettingsService {
	return &SettingsService{
		store:    st,
		language: wisatatypes.DefaultLanguage,
	}
}

// Name returns the service name "settings" for registration.
func (s *SettingsService) Name() string {
	return "settings"
}

// Initialize hydrates the in-memory settings from the durable store. A
// corrupt profile entry is dropped rather than failing startup; an unknown
// persisted language falls back to the default.
func (s *SettingsService) Initialize() error {
	if s.store == nil {
		return fmt.Errorf("settings service requires a store")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.credential = s.store.Get(store.KeyCredential)
	s.language = wisatatypes.ParseLanguage(s.store.Get(store.KeyLanguage))

	if raw := s.store.Get(store.KeyProfile); raw != "" {
		var profile wisatatypes.UserProfile
		if err := json.Unmarshal([]byte(raw), &profile); err != nil {
			logger.Warn("Dropping unreadable stored profile", "error", err)
		} else {
			s.profile = profile
		}
	}

	s.initialized = true
	return nil
}

// Credential returns the stored bearer credential, or "" when the user is
// not logged in.
func (s *SettingsService) Credential() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.credential
}

// HasCredential reports whether a bearer credential is present.
func (s *SettingsService) HasCredential() bool {
	return s.Credential() != ""
}

// Profile returns the cached profile of the authenticated user.
func (s *SettingsService) Profile() wisatatypes.UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

// Language returns the current language preference.
func (s *SettingsService) Language() wisatatypes.Language {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.language
}

// SetLanguage updates the language preference. The write is immediately
// durable; there is no separate save step.
func (s *SettingsService) SetLanguage(lang wisatatypes.Language) error {
	if !lang.Valid() {
		return fmt.Errorf("unknown language %q", lang)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Set(store.KeyLanguage, string(lang)); err != nil {
		return fmt.Errorf("failed to persist language preference: %w", err)
	}
	s.language = lang

	logger.Debug("Language preference updated", "language", lang)
	return nil
}

// SetCredential stores the credential and profile produced by a successful
// login. This is the only write path for both values besides ClearCredential.
func (s *SettingsService) SetCredential(token string, profile wisatatypes.UserProfile) error {
	if token == "" {
		return fmt.Errorf("credential cannot be empty")
	}

	encoded, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Set(store.KeyCredential, token); err != nil {
		return fmt.Errorf("failed to persist credential: %w", err)
	}
	if err := s.store.Set(store.KeyProfile, string(encoded)); err != nil {
		return fmt.Errorf("failed to persist profile: %w", err)
	}

	s.credential = token
	s.profile = profile
	return nil
}

// ClearCredential removes the credential and profile on logout.
func (s *SettingsService) ClearCredential() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(store.KeyCredential); err != nil {
		return fmt.Errorf("failed to remove credential: %w", err)
	}
	if err := s.store.Delete(store.KeyProfile); err != nil {
		return fmt.Errorf("failed to remove profile: %w", err)
	}

	s.credential = ""
	s.profile = wisatatypes.UserProfile{}
	return nil
}
