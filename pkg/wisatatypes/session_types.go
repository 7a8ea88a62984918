package wisatatypes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SessionID is the opaque identifier the backend assigns to a persisted
// conversation. The JemberTrip backend emits integer ids on the wire while
// this client treats them as opaque strings, so the type carries custom JSON
// handling that accepts either form and re-encodes the original token.
//
// The zero value is the unsaved sentinel: a conversation that has not yet
// been confirmed by the backend.
type SessionID string

// IsZero reports whether the id is the unsaved sentinel.
func (id SessionID) IsZero() bool {
	return id == ""
}

// UnmarshalJSON accepts a JSON number, string, or null as a session id.
func (id *SessionID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid session id: %w", err)
		}
		*id = SessionID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid session id: %w", err)
	}
	*id = SessionID(n.String())
	return nil
}

// MarshalJSON encodes the sentinel as null and numeric ids back as numbers,
// matching what the backend handed out.
func (id SessionID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte("null"), nil
	}
	if isAllDigits(string(id)) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Session is a summary of one persisted conversation thread as returned by
// the backend session list. The id is immutable once assigned; title and
// creation time are refreshed from the backend on every list fetch.
type Session struct {
	ID        SessionID `json:"id"`         // Backend-assigned opaque id
	Title     string    `json:"title"`      // Short title derived from the first question
	CreatedAt time.Time `json:"created_at"` // Creation time as reported by the backend
}

// Sender distinguishes who produced a message. The assistant value is "ai"
// on the wire.
type Sender string

// Message senders.
const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "ai"
)

// Message is one entry in a conversation timeline. Messages are append-only:
// once created, a message's text is never mutated. Error replies from the
// engine itself (no credential, backend failure) are ordinary assistant
// messages with IsError set.
type Message struct {
	ID              string     `json:"id,omitempty"`              // Local uuid, assigned at append time
	Sender          Sender     `json:"sender"`
	Text            string     `json:"text"`
	Timestamp       string     `json:"timestamp"`                 // Display string (HH:MM), not a sortable time
	Sources         []string   `json:"sources,omitempty"`         // Citation labels, payload order preserved
	Recommendations []PlaceRef `json:"recommendations,omitempty"` // Place cards attached to the reply
	IsError         bool       `json:"is_error,omitempty"`
}

// DisplayClock formats a timestamp the way the timeline shows it.
func DisplayClock(t time.Time) string {
	return t.Format("15:04")
}

// PlaceID identifies a catalog entry. Like session ids it arrives as a JSON
// number but is treated as an opaque token.
type PlaceID string

// UnmarshalJSON accepts a JSON number or string as a place id.
func (id *PlaceID) UnmarshalJSON(data []byte) error {
	var s SessionID
	if err := s.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("invalid place id: %w", err)
	}
	*id = PlaceID(s)
	return nil
}

// PlaceRef is an opaque pointer to a place entity owned by the tourism
// catalog. The engine only displays it and forwards the id on navigation;
// it never mutates catalog data. Field tags follow the backend's Indonesian
// column names.
type PlaceRef struct {
	ID        PlaceID `json:"id"`
	Name      string  `json:"nama_wisata"`
	Category  string  `json:"kategori"`
	Address   string  `json:"alamat"`
	ImagePath string  `json:"gambar"`
}

// DetailPath returns the site-relative path of the place detail view this
// card navigates to.
func (p PlaceRef) DetailPath() string {
	return "/wisata/" + string(p.ID)
}

// placeholderImageURL is shown for catalog entries without a picture.
const placeholderImageURL = "https://placehold.co/400x300?text=No+Image"

// ImageURL resolves the card image the same way the web frontend does:
// absolute URLs pass through, empty paths get a placeholder, and relative
// paths are rooted.
func (p PlaceRef) ImageURL() string {
	switch {
	case p.ImagePath == "":
		return placeholderImageURL
	case strings.HasPrefix(p.ImagePath, "http://"), strings.HasPrefix(p.ImagePath, "https://"):
		return p.ImagePath
	default:
		return "/" + strings.TrimPrefix(p.ImagePath, "/")
	}
}

// TurnResult is the assistant's reply to one submitted turn. The SessionID
// is authoritative: when the request carried the unsaved sentinel the
// backend creates a session and reports its id here.
type TurnResult struct {
	Answer          string
	Sources         []string
	Recommendations []PlaceRef
	SessionID       SessionID
}

// UserProfile is the cached profile of the authenticated user, hydrated from
// the durable store at startup and rewritten only by login/logout.
type UserProfile struct {
	Username string `json:"username" yaml:"username"`
	FullName string `json:"full_name" yaml:"full_name"`
	Email    string `json:"email" yaml:"email"`
	Role     string `json:"role" yaml:"role"`
	Avatar   string `json:"avatar" yaml:"avatar"`
}
