package channel

import "errors"

// Kind classifies a failure for logging and message mapping.
type Kind int

const (
	// KindValidation is a malformed or missing argument.
	KindValidation Kind = iota
	// KindAuthorization is a sender lacking permission.
	KindAuthorization
	// KindState is a violated precondition on channel state.
	KindState
	// KindPersistence is a failed write to storage.
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindState:
		return "state"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// Error codes for domain errors.
const (
	ErrCodeAlreadyMember    = "already_member"
	ErrCodeNotMember        = "not_member"
	ErrCodeAlreadyMuted     = "already_muted"
	ErrCodeNotMuted         = "not_muted"
	ErrCodeMuted            = "muted"
	ErrCodeInvalidDuration  = "invalid_duration"
	ErrCodeAlreadyBanned    = "already_banned"
	ErrCodeNotBanned        = "not_banned"
	ErrCodeBanned           = "banned"
	ErrCodeAlreadyModerator = "already_moderator"
	ErrCodeNotModeratorOf   = "not_moderator_target"
	ErrCodeAlreadyExists    = "already_exists"
	ErrCodeNotFound         = "channel_not_found"
	ErrCodeInvalidName      = "invalid_name"
	ErrCodeNotModerator     = "not_moderator"
	ErrCodeNoChannel        = "no_channel"
	ErrCodeMissingArgs      = "missing_args"
	ErrCodePersistence      = "persistence"
)

// Error is a coded domain failure. Two errors match under errors.Is when
// their codes are equal, so sentinels survive wrapping and re-creation.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

var (
	ErrAlreadyMember    = newError(KindState, ErrCodeAlreadyMember, "already a member")
	ErrNotMember        = newError(KindState, ErrCodeNotMember, "not a member")
	ErrAlreadyMuted     = newError(KindState, ErrCodeAlreadyMuted, "already muted")
	ErrNotMuted         = newError(KindState, ErrCodeNotMuted, "not muted")
	ErrMuted            = newError(KindState, ErrCodeMuted, "muted in channel")
	ErrAlreadyBanned    = newError(KindState, ErrCodeAlreadyBanned, "already banned")
	ErrNotBanned        = newError(KindState, ErrCodeNotBanned, "not banned")
	ErrBanned           = newError(KindState, ErrCodeBanned, "banned from channel")
	ErrAlreadyModerator = newError(KindState, ErrCodeAlreadyModerator, "already a moderator")
	ErrNotModeratorOf   = newError(KindState, ErrCodeNotModeratorOf, "not a moderator of the channel")
	ErrAlreadyExists    = newError(KindState, ErrCodeAlreadyExists, "channel already exists")
	ErrNotFound         = newError(KindState, ErrCodeNotFound, "channel not found")

	ErrInvalidDuration = newError(KindValidation, ErrCodeInvalidDuration, "invalid mute duration")
	ErrInvalidName     = newError(KindValidation, ErrCodeInvalidName, "invalid channel name")
	ErrNoChannel       = newError(KindValidation, ErrCodeNoChannel, "no channel specified or joined")
	ErrMissingArgs     = newError(KindValidation, ErrCodeMissingArgs, "missing arguments")

	ErrNotModerator = newError(KindAuthorization, ErrCodeNotModerator, "moderator permission required")

	ErrPersistence = newError(KindPersistence, ErrCodePersistence, "failed to persist channel")
)

// KindOf returns the kind of err, or false when err is not a domain error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
