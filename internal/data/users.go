// Package data provides the PostgreSQL models and stores behind the chat
// service.
package data

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"

	"github.com/PaulBabatuyi/pairchat/internal/normalize"
)

// UsersStore performs user DB operations.
type UsersStore struct {
	db  *bun.DB
	now func() time.Time
}

// NewUsersStore returns a UsersStore over db.
func NewUsersStore(db *bun.DB) *UsersStore {
	return &UsersStore{db: db, now: dbNow}
}

// dbNow is the timestamp source for every row the stores write. PostgreSQL
// keeps microseconds, so truncating up front keeps returned values equal
// to stored ones.
func dbNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// CreateUser inserts a new user with an already-hashed password.
func (s *UsersStore) CreateUser(ctx context.Context, email, displayName, hashedPassword string) (*User, error) {
	now := s.now()
	user := &User{
		ID:           uuid.New(),
		Email:        normalize.Email(email),
		DisplayName:  displayName,
		PasswordHash: hashedPassword,
		LastSeen:     now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := s.db.NewInsert().Model(user).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, errors.Wrap(err, "usersStore.CreateUser.Insert")
	}
	return user, nil
}

// GetUserByEmail finds a user by normalized email.
func (s *UsersStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	user := new(User)
	err := s.db.NewSelect().Model(user).Where("email = ?", normalize.Email(email)).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, errors.Wrap(err, "usersStore.GetUserByEmail.Scan")
	}
	return user, nil
}

// GetUserByID finds a user by id.
func (s *UsersStore) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	user := new(User)
	err := s.db.NewSelect().Model(user).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, errors.Wrap(err, "usersStore.GetUserByID.Scan")
	}
	return user, nil
}

// GetUsersByIDs returns the users that still exist among ids, keyed by id.
func (s *UsersStore) GetUsersByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*User, error) {
	out := make(map[uuid.UUID]*User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var users []User
	if err := s.db.NewSelect().Model(&users).Where("id IN (?)", bun.In(ids)).Scan(ctx); err != nil {
		return nil, errors.Wrap(err, "usersStore.GetUsersByIDs.Scan")
	}
	for i := range users {
		out[users[i].ID] = &users[i]
	}
	return out, nil
}

// SetPresence records the online flag and last-seen time.
func (s *UsersStore) SetPresence(ctx context.Context, id uuid.UUID, online bool) error {
	now := s.now()
	res, err := s.db.NewUpdate().
		Model((*User)(nil)).
		Set("online = ?", online).
		Set("last_seen = ?", now).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "usersStore.SetPresence.Update")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// DeleteUser removes a user. Membership and message rows are kept with
// their user reference cleared, so rooms the user was in keep rendering
// with a placeholder identity.
func (s *UsersStore) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewUpdate().
			Model((*ChatroomMember)(nil)).
			Set("user_id = NULL").
			Where("user_id = ?", id).
			Exec(ctx); err != nil {
			return errors.Wrap(err, "usersStore.DeleteUser.DetachMembers")
		}

		if _, err := tx.NewUpdate().
			Model((*Message)(nil)).
			Set("user_id = NULL").
			Where("user_id = ?", id).
			Exec(ctx); err != nil {
			return errors.Wrap(err, "usersStore.DeleteUser.DetachMessages")
		}

		res, err := tx.NewDelete().Model((*User)(nil)).Where("id = ?", id).Exec(ctx)
		if err != nil {
			return errors.Wrap(err, "usersStore.DeleteUser.Delete")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrUserNotFound
		}
		return nil
	})
}

// Ping checks the connection for health reporting.
func (s *UsersStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
