package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned (wrapped) when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// User represents a registered or guest player.
type User struct {
	ID           int64
	MemberID     string // stable identity, survives renames
	Username     string
	PasswordHash string
	IsGuest      bool
	SessionID    string // For guest user session tracking
	CreatedAt    time.Time
}

// ChannelRecord is the persisted form of one channel.
// Identifiers are member ids; MuteExpires holds epoch milliseconds and only
// has entries for timed mutes.
type ChannelRecord struct {
	Name        string           `yaml:"name"`
	Members     []string         `yaml:"members"`
	Moderators  []string         `yaml:"moderators"`
	Muted       []string         `yaml:"muted"`
	MuteExpires map[string]int64 `yaml:"mute_expires,omitempty"`
	Banned      []string         `yaml:"banned"`
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, memberID, username, passwordHash string) (*User, error)

	// CreateGuestUser creates a temporary guest user with session ID.
	CreateGuestUser(ctx context.Context, memberID, sessionID string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username, case-insensitively.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// GetUserByMemberID retrieves a user by member identity.
	GetUserByMemberID(ctx context.Context, memberID string) (*User, error)
}

// ChannelStore handles channel persistence.
type ChannelStore interface {
	// LoadChannels returns every stored channel.
	LoadChannels(ctx context.Context) ([]ChannelRecord, error)

	// SaveChannel replaces the stored state of one channel.
	SaveChannel(ctx context.Context, rec ChannelRecord) error

	// DeleteChannel removes a channel. Deleting a missing channel is not an error.
	DeleteChannel(ctx context.Context, name string) error

	// LoadDefaults returns member id -> default channel name.
	LoadDefaults(ctx context.Context) (map[string]string, error)

	// SaveDefault sets the default channel of a member. An empty channel clears it.
	SaveDefault(ctx context.Context, memberID, channel string) error

	// Close releases underlying resources.
	Close() error
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	ChannelStore
}
