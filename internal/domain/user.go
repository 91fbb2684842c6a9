// Package domain contains entities without logic, just meta-data.
package domain

import "errors"

const MaxUsernameLen = 36

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
)

type (
	// ConnID identifies one live transport session. Assigned at attach
	// time, dies with the connection.
	ConnID string

	// UserID is the account identity used by the process-wide online set.
	// A user can be online without being in any room.
	UserID string
)

func ValidateUsername(name string) error {
	if len(name) == 0 {
		return ErrUsernameEmpty
	}
	if len(name) > MaxUsernameLen {
		return ErrUsernameTooLong
	}
	return nil
}
