package data

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// CreateSchema creates tables, foreign keys and indexes if they do not
// exist. Foreign keys that reference users use ON DELETE SET NULL so
// history survives account deletion; UsersStore.DeleteUser clears the
// references explicitly as well.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	if _, err := db.NewCreateTable().
		Model((*User)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return errors.Wrap(err, "schema.CreateSchema.users")
	}

	if _, err := db.NewCreateTable().
		Model((*Chatroom)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return errors.Wrap(err, "schema.CreateSchema.chatrooms")
	}

	if _, err := db.NewCreateTable().
		Model((*ChatroomMember)(nil)).
		IfNotExists().
		ForeignKey(`("room_id") REFERENCES "chatrooms" ("id") ON DELETE CASCADE`).
		ForeignKey(`("user_id") REFERENCES "users" ("id") ON DELETE SET NULL`).
		Exec(ctx); err != nil {
		return errors.Wrap(err, "schema.CreateSchema.chatroom_members")
	}

	if _, err := db.NewCreateTable().
		Model((*Message)(nil)).
		IfNotExists().
		ForeignKey(`("room_id") REFERENCES "chatrooms" ("id") ON DELETE CASCADE`).
		ForeignKey(`("sender_id") REFERENCES "chatroom_members" ("id") ON DELETE CASCADE`).
		ForeignKey(`("user_id") REFERENCES "users" ("id") ON DELETE SET NULL`).
		Exec(ctx); err != nil {
		return errors.Wrap(err, "schema.CreateSchema.messages")
	}

	indexes := []*bun.CreateIndexQuery{
		db.NewCreateIndex().
			Model((*Message)(nil)).
			Index("messages_room_created_idx").
			ColumnExpr("room_id, created_at DESC, id DESC"),
		// a stored file belongs to at most one message
		db.NewCreateIndex().
			Model((*Message)(nil)).
			Unique().
			Index("messages_file_key_idx").
			Column("content").
			Where("is_file"),
		db.NewCreateIndex().
			Model((*ChatroomMember)(nil)).
			Index("chatroom_members_user_idx").
			Column("user_id"),
		db.NewCreateIndex().
			Model((*Chatroom)(nil)).
			Index("chatrooms_last_message_idx").
			ColumnExpr("last_message_at DESC"),
	}
	for _, q := range indexes {
		if _, err := q.IfNotExists().Exec(ctx); err != nil {
			return errors.Wrap(err, "schema.CreateSchema.index")
		}
	}
	return nil
}

// Truncate removes all rows. Tests use it between cases.
func Truncate(ctx context.Context, db bun.IDB) error {
	_, err := db.NewRaw(`TRUNCATE TABLE messages, chatroom_members, chatrooms, users CASCADE`).Exec(ctx)
	return errors.Wrap(err, "schema.Truncate")
}
