package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"wisatachat/internal/logger"
	"wisatachat/pkg/wisatatypes"
)

// ChatClient implements the wisatatypes.ChatTransport interface against the
// JemberTrip assistant backend. Every operation is authenticated with the
// bearer credential from the settings service; a missing credential is
// reported as wisatatypes.ErrNoCredential without touching the network.
//
// Remote failures are classified into the transport taxonomy: 401 →
// ErrUnauthorized, 404 → ErrNotFound, anything else (including connection
// failures) → ErrUnreachable.
type ChatClient struct {
	initialized bool
	baseURL     string
	httpClient  *http.Client
	settings    *SettingsService
}

// ChatClientConfig holds configuration for the chat client.
type ChatClientConfig struct {
	BaseURL string        // Backend base URL (defaults to the local dev server)
	Timeout time.Duration // Per-request timeout (defaults to 60s)
}

// NewChatClient creates a new chat client.
func NewChatClient(config ChatClientConfig) *ChatClient {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8000"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &ChatClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name returns the service name "chat_client" for registration.
func (c *ChatClient) Name() string {
	return "chat_client"
}

// Initialize resolves the settings service the client reads the credential
// from.
func (c *ChatClient) Initialize() error {
	if c.settings == nil {
		settings, err := GetGlobalSettingsService()
		if err != nil {
			return fmt.Errorf("chat client requires the settings service: %w", err)
		}
		c.settings = settings
	}
	c.initialized = true
	return nil
}

// flexTime decodes the backend's timestamps, which arrive either as RFC 3339
// or as a bare ISO 8601 datetime without a zone.
type flexTime struct {
	time.Time
}

func (t *flexTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

// sessionSummary mirrors one entry of the backend session list.
type sessionSummary struct {
	ID        wisatatypes.SessionID `json:"id"`
	Title     string                `json:"title"`
	CreatedAt flexTime              `json:"created_at"`
}

// sessionListResponse mirrors GET /api/chat/sessions.
type sessionListResponse struct {
	Status string           `json:"status"`
	Data   []sessionSummary `json:"data"`
}

// wireMessage mirrors one entry of the backend message history.
type wireMessage struct {
	Sender          string                 `json:"sender"`
	Content         string                 `json:"content"`
	Sources         []string               `json:"sources"`
	Recommendations []wisatatypes.PlaceRef `json:"recommendations"`
	Timestamp       flexTime               `json:"timestamp"`
}

// messageListResponse mirrors GET /api/chat/{id}/messages.
type messageListResponse struct {
	Status string        `json:"status"`
	Data   []wireMessage `json:"data"`
}

// chatRequest mirrors the POST /api/v1/chat payload.
type chatRequest struct {
	Question  string                `json:"question"`
	SessionID wisatatypes.SessionID `json:"session_id"`
	Language  wisatatypes.Language  `json:"language"`
}

// chatResponse mirrors the POST /api/v1/chat reply.
type chatResponse struct {
	Status          string                 `json:"status"`
	SessionID       wisatatypes.SessionID  `json:"session_id"`
	Answer          string                 `json:"answer"`
	Sources         []string               `json:"sources"`
	Recommendations []wisatatypes.PlaceRef `json:"recommendations"`
}

// loginRequest mirrors the POST /api/auth/login payload.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse mirrors the POST /api/auth/login reply.
type loginResponse struct {
	Status      string                  `json:"status"`
	AccessToken string                  `json:"access_token"`
	User        wisatatypes.UserProfile `json:"user"`
}

// ListSessions fetches the user's session summaries, most recent first.
func (c *ChatClient) ListSessions(ctx context.Context) ([]wisatatypes.Session, error) {
	body, err := c.doAuthenticated(ctx, http.MethodGet, "/api/chat/sessions", nil)
	if err != nil {
		return nil, err
	}

	var response sessionListResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("%w: malformed session list: %v", wisatatypes.ErrUnreachable, err)
	}

	sessions := make([]wisatatypes.Session, 0, len(response.Data))
	for _, s := range response.Data {
		sessions = append(sessions, wisatatypes.Session{
			ID:        s.ID,
			Title:     s.Title,
			CreatedAt: s.CreatedAt.Time,
		})
	}

	logger.Debug("Session list fetched", "count", len(sessions))
	return sessions, nil
}

// GetMessages fetches the ordered message history of one session.
func (c *ChatClient) GetMessages(ctx context.Context, id wisatatypes.SessionID) ([]wisatatypes.Message, error) {
	if id.IsZero() {
		return nil, fmt.Errorf("%w: unsaved session has no history", wisatatypes.ErrNotFound)
	}

	body, err := c.doAuthenticated(ctx, http.MethodGet, "/api/chat/"+string(id)+"/messages", nil)
	if err != nil {
		return nil, err
	}

	var response messageListResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("%w: malformed message history: %v", wisatatypes.ErrUnreachable, err)
	}

	messages := make([]wisatatypes.Message, 0, len(response.Data))
	for _, m := range response.Data {
		sender := wisatatypes.Sender(m.Sender)
		if sender != wisatatypes.SenderUser {
			sender = wisatatypes.SenderAssistant
		}
		messages = append(messages, wisatatypes.Message{
			Sender:          sender,
			Text:            m.Content,
			Timestamp:       wisatatypes.DisplayClock(m.Timestamp.Time),
			Sources:         m.Sources,
			Recommendations: m.Recommendations,
		})
	}

	return messages, nil
}

// PostTurn submits one question. A zero id asks the backend to open a new
// session; the id in the result is authoritative either way.
func (c *ChatClient) PostTurn(ctx context.Context, question string, id wisatatypes.SessionID, lang wisatatypes.Language) (*wisatatypes.TurnResult, error) {
	request := chatRequest{
		Question:  question,
		SessionID: id,
		Language:  lang,
	}

	body, err := c.doAuthenticated(ctx, http.MethodPost, "/api/v1/chat", request)
	if err != nil {
		return nil, err
	}

	var response chatResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("%w: malformed chat reply: %v", wisatatypes.ErrUnreachable, err)
	}
	if response.Status != "success" {
		return nil, fmt.Errorf("%w: backend reported status %q", wisatatypes.ErrUnreachable, response.Status)
	}

	logger.Debug("Turn completed", "session", response.SessionID, "recommendations", len(response.Recommendations))
	return &wisatatypes.TurnResult{
		Answer:          response.Answer,
		Sources:         response.Sources,
		Recommendations: response.Recommendations,
		SessionID:       response.SessionID,
	}, nil
}

// DeleteSession removes a session server-side.
func (c *ChatClient) DeleteSession(ctx context.Context, id wisatatypes.SessionID) error {
	if id.IsZero() {
		return fmt.Errorf("%w: unsaved session cannot be deleted", wisatatypes.ErrNotFound)
	}

	_, err := c.doAuthenticated(ctx, http.MethodDelete, "/api/chat/"+string(id), nil)
	return err
}

// Login exchanges a username and password for a bearer credential and the
// user's profile. It is the only unauthenticated call in the protocol.
func (c *ChatClient) Login(ctx context.Context, username, password string) (string, wisatatypes.UserProfile, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/api/auth/login", loginRequest{
		Username: username,
		Password: password,
	}, "")
	if err != nil {
		return "", wisatatypes.UserProfile{}, err
	}

	var response loginResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", wisatatypes.UserProfile{}, fmt.Errorf("%w: malformed login reply: %v", wisatatypes.ErrUnreachable, err)
	}
	if response.AccessToken == "" {
		return "", wisatatypes.UserProfile{}, fmt.Errorf("%w: login reply carried no token", wisatatypes.ErrUnreachable)
	}

	return response.AccessToken, response.User, nil
}

// doAuthenticated performs a request that requires the bearer credential.
func (c *ChatClient) doAuthenticated(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	if !c.initialized {
		return nil, fmt.Errorf("chat client not initialized")
	}

	token := c.settings.Credential()
	if token == "" {
		return nil, wisatatypes.ErrNoCredential
	}

	return c.doRequest(ctx, method, path, payload, token)
}

// doRequest builds, sends, and classifies one HTTP exchange.
func (c *ChatClient) doRequest(ctx context.Context, method, path string, payload interface{}, token string) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Debug("Request failed", "method", method, "path", path, "error", err)
		return nil, fmt.Errorf("%w: %v", wisatatypes.ErrUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", wisatatypes.ErrUnreachable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: HTTP 401", wisatatypes.ErrUnauthorized)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: HTTP 404", wisatatypes.ErrNotFound)
	default:
		logger.Debug("Backend error", "method", method, "path", path, "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: HTTP %d: %s", wisatatypes.ErrUnreachable, resp.StatusCode, truncateBody(body))
	}
}

// truncateBody keeps error messages readable when the backend returns a
// large HTML error page.
func truncateBody(body []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
