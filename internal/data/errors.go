package data

import (
	"github.com/pkg/errors"
	"github.com/uptrace/bun/driver/pgdriver"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrDuplicateEmail     = errors.New("user already exists")
	ErrRoomNotFound       = errors.New("room not found")
	ErrNotMember          = errors.New("user is not a member of the room")
	ErrBlockedByRecipient = errors.New("sender is blocked by the recipient")
	ErrRecipientBlocked   = errors.New("sender has blocked the recipient")
	ErrMessageNotFound    = errors.New("message not found")
	ErrNotSender          = errors.New("user did not send the message")
	ErrFileInUse          = errors.New("file is already attached to a message")
)

// isUniqueViolation reports a PostgreSQL unique_violation (23505).
func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == "23505"
	}
	return false
}
