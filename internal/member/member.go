// Package member turns player names into stable identifiers usable as map keys.
//
// Identifiers are UUID strings. A registered user keeps the UUID assigned at
// registration for life, so renames do not change identity. A name nobody has
// registered still resolves, to the deterministic offline UUID for that name,
// which lets moderators mute or ban players that are not connected.
package member

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID identifies a chat participant.
type ID string

// String returns the canonical UUID form.
func (id ID) String() string { return string(id) }

// OfflineID returns the identifier of a name with no registered user.
// Names are case-insensitive.
func OfflineID(name string) ID {
	key := "OfflinePlayer:" + strings.ToLower(strings.TrimSpace(name))
	return ID(uuid.NewMD5(uuid.NameSpaceOID, []byte(key)).String())
}

// Parse validates a stored identifier.
func Parse(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("parse member id %q: %w", s, err)
	}
	return ID(u.String()), nil
}

// Member is an identity together with the name it was last seen under.
type Member struct {
	ID   ID
	Name string
}
