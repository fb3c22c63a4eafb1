package keys

import (
	"fmt"
)

type ActionKeyParts struct {
	ReportID string
	ActionID string
}

// ParseActionKey splits an action key into its ids.
func ParseActionKey(key string) (*ActionKeyParts, error) {
	m := actionKeyRegexp.FindStringSubmatch(key)
	if m == nil {
		return nil, fmt.Errorf("invalid action key format: %q", key)
	}
	return &ActionKeyParts{ReportID: m[1], ActionID: m[2]}, nil
}
