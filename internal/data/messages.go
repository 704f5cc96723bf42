package data

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// MessagesStore provides message ledger operations.
type MessagesStore struct {
	db  *bun.DB
	now func() time.Time
}

// NewMessagesStore returns a MessagesStore over db.
func NewMessagesStore(db *bun.DB) *MessagesStore {
	return &MessagesStore{db: db, now: dbNow}
}

// CreateMessage appends a message to a room and, in the same
// transaction, advances the room's last_message_at and the sender's
// last_read_at to the message's created_at.
//
// The room row is locked first so sends and deletes in one room run one
// at a time and created_at follows commit order within the room.
func (s *MessagesStore) CreateMessage(ctx context.Context, in NewMessage) (*Message, error) {
	var msg *Message

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := lockRoom(ctx, tx, in.RoomID); err != nil {
			if errors.Is(err, ErrRoomNotFound) {
				return ErrNotMember
			}
			return err
		}

		members, err := lockMembers(ctx, tx, in.RoomID)
		if err != nil {
			return err
		}
		room := Room{Members: members}

		sender, ok := room.Member(in.UserID)
		if !ok {
			return ErrNotMember
		}
		if sender.IsBlocked {
			return ErrBlockedByRecipient
		}
		if other, ok := room.Counterpart(sender.ID); ok && other.IsBlocked {
			return ErrRecipientBlocked
		}

		userID := in.UserID
		msg = &Message{
			ID:        uuid.Must(uuid.NewV7()),
			RoomID:    in.RoomID,
			SenderID:  sender.ID,
			UserID:    &userID,
			Content:   in.Content,
			IsFile:    in.IsFile,
			CreatedAt: s.now(),
		}
		if in.IsFile {
			msg.FileName = &in.FileName
			msg.FileType = &in.FileType
			msg.FileSize = &in.FileSize
		}

		if _, err := tx.NewInsert().Model(msg).Exec(ctx); err != nil {
			if in.IsFile && isUniqueViolation(err) {
				return ErrFileInUse
			}
			return errors.Wrap(err, "messagesStore.CreateMessage.Insert")
		}

		if _, err := tx.NewUpdate().
			Model((*Chatroom)(nil)).
			Set("last_message_at = GREATEST(last_message_at, ?)", msg.CreatedAt).
			Where("id = ?", in.RoomID).
			Exec(ctx); err != nil {
			return errors.Wrap(err, "messagesStore.CreateMessage.TouchRoom")
		}

		if _, err := tx.NewUpdate().
			Model((*ChatroomMember)(nil)).
			Set("last_read_at = GREATEST(last_read_at, ?)", msg.CreatedAt).
			Where("id = ?", sender.ID).
			Exec(ctx); err != nil {
			return errors.Wrap(err, "messagesStore.CreateMessage.MarkSenderRead")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// DeleteMessage removes a message sent by userID and recomputes the
// room's last_message_at from what remains, inside one transaction. For
// a file message the result names the stored object once nothing else
// references it.
func (s *MessagesStore) DeleteMessage(ctx context.Context, roomID, messageID, userID uuid.UUID) (*DeleteResult, error) {
	var result *DeleteResult

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		chatroom, err := lockRoom(ctx, tx, roomID)
		if err != nil {
			if errors.Is(err, ErrRoomNotFound) {
				return ErrNotMember
			}
			return err
		}

		members, err := lockMembers(ctx, tx, roomID)
		if err != nil {
			return err
		}
		room := Room{Chatroom: *chatroom, Members: members}

		requester, ok := room.Member(userID)
		if !ok {
			return ErrNotMember
		}

		msg := new(Message)
		if err := tx.NewSelect().
			Model(msg).
			Where("id = ?", messageID).
			Where("room_id = ?", roomID).
			Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrMessageNotFound
			}
			return errors.Wrap(err, "messagesStore.DeleteMessage.Select")
		}
		if msg.SenderID != requester.ID {
			return ErrNotSender
		}

		if _, err := tx.NewDelete().Model((*Message)(nil)).Where("id = ?", msg.ID).Exec(ctx); err != nil {
			return errors.Wrap(err, "messagesStore.DeleteMessage.Delete")
		}

		// read after the delete so the removed row cannot be the latest
		latest, err := latestMessage(ctx, tx, roomID)
		if err != nil {
			return err
		}
		lastMessageAt := room.CreatedAt
		if latest != nil {
			lastMessageAt = latest.CreatedAt
		}

		if _, err := tx.NewUpdate().
			Model((*Chatroom)(nil)).
			Set("last_message_at = ?", lastMessageAt).
			Where("id = ?", roomID).
			Exec(ctx); err != nil {
			return errors.Wrap(err, "messagesStore.DeleteMessage.TouchRoom")
		}
		room.LastMessageAt = lastMessageAt

		result = &DeleteResult{Deleted: *msg, Room: room, Latest: latest}
		if msg.IsFile {
			shared, err := tx.NewSelect().
				Model((*Message)(nil)).
				Where("is_file").
				Where("content = ?", msg.Content).
				Exists(ctx)
			if err != nil {
				return errors.Wrap(err, "messagesStore.DeleteMessage.FileRefs")
			}
			if !shared {
				result.ObjectKey = msg.Content
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListMessages returns up to limit messages of a room, newest first,
// skipping offset.
func (s *MessagesStore) ListMessages(ctx context.Context, roomID uuid.UUID, offset, limit int) ([]Message, error) {
	var msgs []Message
	if err := s.db.NewSelect().
		Model(&msgs).
		Where("room_id = ?", roomID).
		OrderExpr("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Scan(ctx); err != nil {
		return nil, errors.Wrap(err, "messagesStore.ListMessages.Scan")
	}
	return msgs, nil
}

func lockRoom(ctx context.Context, tx bun.Tx, id uuid.UUID) (*Chatroom, error) {
	chatroom := new(Chatroom)
	if err := tx.NewSelect().Model(chatroom).Where("id = ?", id).For("UPDATE").Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, errors.Wrap(err, "messagesStore.lockRoom.Scan")
	}
	return chatroom, nil
}

// lockMembers share-locks member rows so a concurrent block or unblock
// waits for the caller's transaction.
func lockMembers(ctx context.Context, tx bun.Tx, roomID uuid.UUID) ([]ChatroomMember, error) {
	var members []ChatroomMember
	if err := tx.NewSelect().
		Model(&members).
		Where("room_id = ?", roomID).
		OrderExpr("id").
		For("SHARE").
		Scan(ctx); err != nil {
		return nil, errors.Wrap(err, "messagesStore.lockMembers.Scan")
	}
	return members, nil
}
