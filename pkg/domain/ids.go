// Package domain holds the typed identifiers shared across qrlink.
//
// IDs coming off the chat platform are numeric, so unlike a UUID-based
// system the types here wrap int64. The distinct types still buy the
// compile-time guarantee that a user ID is never passed where an API
// profile ID is expected.
package domain

import (
	"strconv"

	dErrors "qrlink/pkg/domain-errors"
)

// UserID identifies the chat user who owns a link attempt. It is the
// platform-assigned numeric ID, never reissued by us.
type UserID int64

// ProfileID identifies an API profile row (the application identity a
// handshake is opened with).
type ProfileID int64

// IsZero reports whether the ID carries no value.
func (u UserID) IsZero() bool { return u == 0 }

func (u UserID) String() string { return strconv.FormatInt(int64(u), 10) }

// IsZero reports whether the ID carries no value.
func (p ProfileID) IsZero() bool { return p == 0 }

func (p ProfileID) String() string { return strconv.FormatInt(int64(p), 10) }

// ParseUserID validates and converts a string form (path params, JSON
// strings) into a UserID. IDs must be positive.
func ParseUserID(s string) (UserID, error) {
	n, err := parsePositive(s)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid user ID")
	}
	return UserID(n), nil
}

// ParseProfileID validates and converts a string form into a ProfileID.
func ParseProfileID(s string) (ProfileID, error) {
	n, err := parsePositive(s)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid profile ID")
	}
	return ProfileID(n), nil
}

func parsePositive(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}
