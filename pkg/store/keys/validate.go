package keys

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidID is returned for ids that cannot be embedded in a key.
var ErrInvalidID = errors.New("invalid id")

var (
	// conservative ID validation: letters, digits, dot, underscore, dash
	// and a reasonable upper bound to protect DB key shapes.
	idRegexp        = regexp.MustCompile(`^[A-Za-z0-9._-]{1,256}$`)
	actionKeyRegexp = regexp.MustCompile(`^r:([A-Za-z0-9._-]{1,256}):a:([A-Za-z0-9._-]{1,256})$`)
)

// ValidateID checks a report or action id.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidID)
	}
	if !idRegexp.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}
