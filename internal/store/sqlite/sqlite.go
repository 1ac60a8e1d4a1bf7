package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vovakirdan/chanserv/internal/store"
)

//go:embed schema.sql
var schema string

const (
	roleMember    = "member"
	roleModerator = "moderator"
	roleMuted     = "muted"
	roleBanned    = "banned"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply a custom schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; :memory: databases require it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, memberID, username, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (member_id, username, password_hash, is_guest)
		VALUES (?, ?, ?, 0)
	`
	result, err := s.db.ExecContext(ctx, query, memberID, username, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// CreateGuestUser creates a temporary guest user with session ID.
func (s *SQLiteStore) CreateGuestUser(ctx context.Context, memberID, sessionID string) (*store.User, error) {
	query := `
		INSERT INTO users (member_id, username, password_hash, is_guest, session_id)
		VALUES (?, ?, '', 1, ?)
	`
	guestUsername := "guest_" + sessionID[:8]

	result, err := s.db.ExecContext(ctx, query, memberID, guestUsername, sessionID)
	if err != nil {
		return nil, fmt.Errorf("insert guest user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

const userColumns = `id, member_id, username, password_hash, is_guest, COALESCE(session_id, ''), created_at`

func (s *SQLiteStore) queryUser(ctx context.Context, where string, arg any) (*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where
	var user store.User
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.MemberID,
		&user.Username,
		&user.PasswordHash,
		&user.IsGuest,
		&user.SessionID,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	return s.queryUser(ctx, `id = ?`, id)
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	return s.queryUser(ctx, `username = ?`, username)
}

// GetUserByMemberID retrieves a user by member identity.
func (s *SQLiteStore) GetUserByMemberID(ctx context.Context, memberID string) (*store.User, error) {
	return s.queryUser(ctx, `member_id = ?`, memberID)
}

// ==== ChannelStore implementation ====

// LoadChannels returns every stored channel.
func (s *SQLiteStore) LoadChannels(ctx context.Context) ([]store.ChannelRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM channels ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}

	var records []store.ChannelRecord
	index := make(map[string]int)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		index[foldName(name)] = len(records)
		records = append(records, store.ChannelRecord{Name: name})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	entries, err := s.db.QueryContext(ctx, `
		SELECT channel, member_id, role, expires_at
		FROM channel_entries
		ORDER BY rowid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query channel entries: %w", err)
	}
	defer entries.Close()

	for entries.Next() {
		var (
			channel, memberID, role string
			expiresAt               sql.NullInt64
		)
		if err := entries.Scan(&channel, &memberID, &role, &expiresAt); err != nil {
			return nil, fmt.Errorf("scan channel entry: %w", err)
		}
		i, ok := index[foldName(channel)]
		if !ok {
			continue
		}
		rec := &records[i]
		switch role {
		case roleMember:
			rec.Members = append(rec.Members, memberID)
		case roleModerator:
			rec.Moderators = append(rec.Moderators, memberID)
		case roleMuted:
			rec.Muted = append(rec.Muted, memberID)
			if expiresAt.Valid {
				if rec.MuteExpires == nil {
					rec.MuteExpires = make(map[string]int64)
				}
				rec.MuteExpires[memberID] = expiresAt.Int64
			}
		case roleBanned:
			rec.Banned = append(rec.Banned, memberID)
		}
	}

	return records, entries.Err()
}

// SaveChannel replaces the stored state of one channel in a single transaction.
func (s *SQLiteStore) SaveChannel(ctx context.Context, rec store.ChannelRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // Rollback after Commit is a no-op
	}()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO channels (name) VALUES (?)
		ON CONFLICT(name) DO UPDATE SET name = excluded.name, updated_at = CURRENT_TIMESTAMP
	`, rec.Name); err != nil {
		return fmt.Errorf("upsert channel: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM channel_entries WHERE channel = ?`, rec.Name); err != nil {
		return fmt.Errorf("clear channel entries: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO channel_entries (channel, member_id, role, expires_at)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare channel entry: %w", err)
	}
	defer stmt.Close()

	insert := func(role string, ids []string, expires map[string]int64) error {
		for _, id := range ids {
			var expiresAt sql.NullInt64
			if ms, ok := expires[id]; ok {
				expiresAt = sql.NullInt64{Int64: ms, Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, rec.Name, id, role, expiresAt); err != nil {
				return fmt.Errorf("insert %s entry: %w", role, err)
			}
		}
		return nil
	}

	if err := insert(roleMember, rec.Members, nil); err != nil {
		return err
	}
	if err := insert(roleModerator, rec.Moderators, nil); err != nil {
		return err
	}
	if err := insert(roleMuted, rec.Muted, rec.MuteExpires); err != nil {
		return err
	}
	if err := insert(roleBanned, rec.Banned, nil); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// DeleteChannel removes a channel and its entries.
func (s *SQLiteStore) DeleteChannel(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // Rollback after Commit is a no-op
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM channel_entries WHERE channel = ?`, name); err != nil {
		return fmt.Errorf("delete channel entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM channels WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// LoadDefaults returns member id -> default channel name.
func (s *SQLiteStore) LoadDefaults(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT member_id, channel FROM default_channels`)
	if err != nil {
		return nil, fmt.Errorf("query defaults: %w", err)
	}
	defer rows.Close()

	defaults := make(map[string]string)
	for rows.Next() {
		var memberID, channel string
		if err := rows.Scan(&memberID, &channel); err != nil {
			return nil, fmt.Errorf("scan default: %w", err)
		}
		defaults[memberID] = channel
	}

	return defaults, rows.Err()
}

// SaveDefault sets or clears the default channel of a member.
func (s *SQLiteStore) SaveDefault(ctx context.Context, memberID, channel string) error {
	if channel == "" {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM default_channels WHERE member_id = ?`, memberID); err != nil {
			return fmt.Errorf("delete default: %w", err)
		}
		return nil
	}

	query := `
		INSERT INTO default_channels (member_id, channel) VALUES (?, ?)
		ON CONFLICT(member_id) DO UPDATE SET channel = excluded.channel
	`
	if _, err := s.db.ExecContext(ctx, query, memberID, channel); err != nil {
		return fmt.Errorf("upsert default: %w", err)
	}
	return nil
}

// foldName matches the NOCASE collation used for channel names.
func foldName(name string) string {
	return strings.ToLower(name)
}
