package command

import (
	"errors"
	"strings"
	"unicode"
)

// ErrMalformed is returned for a line with an unterminated quote or a
// trailing escape.
var ErrMalformed = errors.New("invalid command line string")

// ParseLine splits a command line into arguments. Whitespace separates
// arguments unless quoted with ' or "; a backslash escapes the next rune
// outside single quotes. A leading '/' is ignored.
func ParseLine(line string) ([]string, error) {
	line = strings.TrimPrefix(strings.TrimSpace(line), "/")

	args := []string{}
	var buf strings.Builder
	var escaped, doubleQuoted, singleQuoted bool
	got := false

	for _, r := range line {
		if escaped {
			buf.WriteRune(r)
			got = true
			escaped = false
			continue
		}

		if r == '\\' {
			if singleQuoted {
				buf.WriteRune(r)
			} else {
				escaped = true
			}
			continue
		}

		if unicode.IsSpace(r) {
			if singleQuoted || doubleQuoted {
				buf.WriteRune(r)
			} else if got {
				args = append(args, buf.String())
				buf.Reset()
				got = false
			}
			continue
		}

		switch r {
		case '"':
			if !singleQuoted {
				doubleQuoted = !doubleQuoted
				got = true
				continue
			}
		case '\'':
			if !doubleQuoted {
				singleQuoted = !singleQuoted
				got = true
				continue
			}
		}
		got = true
		buf.WriteRune(r)
	}

	if escaped || singleQuoted || doubleQuoted {
		return nil, ErrMalformed
	}
	if got {
		args = append(args, buf.String())
	}
	return args, nil
}
