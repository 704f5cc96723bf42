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

// RoomsStore owns chatrooms, their member rows and read state.
type RoomsStore struct {
	db  *bun.DB
	now func() time.Time
}

// NewRoomsStore returns a RoomsStore over db.
func NewRoomsStore(db *bun.DB) *RoomsStore {
	return &RoomsStore{db: db, now: dbNow}
}

// FindOrCreatePairRoom returns the room shared by users a and b, creating
// it with both member rows when none exists. created is false when the
// room already existed, including when a concurrent caller created it
// first: the pair_key unique index makes the losing insert a no-op.
func (s *RoomsStore) FindOrCreatePairRoom(ctx context.Context, a, b uuid.UUID) (room *Room, created bool, err error) {
	key := normalize.PairKey(a.String(), b.String())

	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		now := s.now()
		chatroom := &Chatroom{
			ID:            uuid.New(),
			PairKey:       key,
			CreatedAt:     now,
			LastMessageAt: now,
		}

		res, err := tx.NewInsert().
			Model(chatroom).
			On("CONFLICT (pair_key) DO NOTHING").
			Returning("NULL").
			Exec(ctx)
		if err != nil {
			return errors.Wrap(err, "roomsStore.FindOrCreatePairRoom.InsertRoom")
		}

		if n, _ := res.RowsAffected(); n == 0 {
			room, err = roomByPairKey(ctx, tx, key)
			return err
		}

		// both rows go in with the room; a room with one member is never visible
		userA, userB := a, b
		members := []ChatroomMember{
			{ID: uuid.New(), RoomID: chatroom.ID, UserID: &userA, LastReadAt: now},
			{ID: uuid.New(), RoomID: chatroom.ID, UserID: &userB, LastReadAt: now},
		}
		if _, err := tx.NewInsert().Model(&members).Exec(ctx); err != nil {
			return errors.Wrap(err, "roomsStore.FindOrCreatePairRoom.InsertMembers")
		}

		room = &Room{Chatroom: *chatroom, Members: members}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return room, created, nil
}

// GetRoom loads a room and its members.
func (s *RoomsStore) GetRoom(ctx context.Context, id uuid.UUID) (*Room, error) {
	chatroom := new(Chatroom)
	if err := s.db.NewSelect().Model(chatroom).Where("id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, errors.Wrap(err, "roomsStore.GetRoom.Scan")
	}

	members, err := membersOf(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	return &Room{Chatroom: *chatroom, Members: members[id]}, nil
}

// ListRoomsForUser returns every room userID belongs to, most recently
// active first.
func (s *RoomsStore) ListRoomsForUser(ctx context.Context, userID uuid.UUID) ([]Room, error) {
	memberOf := s.db.NewSelect().
		Model((*ChatroomMember)(nil)).
		Column("room_id").
		Where("user_id = ?", userID)

	var chatrooms []Chatroom
	if err := s.db.NewSelect().
		Model(&chatrooms).
		Where("r.id IN (?)", memberOf).
		OrderExpr("r.last_message_at DESC, r.id").
		Scan(ctx); err != nil {
		return nil, errors.Wrap(err, "roomsStore.ListRoomsForUser.Scan")
	}
	if len(chatrooms) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, len(chatrooms))
	for i := range chatrooms {
		ids[i] = chatrooms[i].ID
	}
	members, err := membersOf(ctx, s.db, ids...)
	if err != nil {
		return nil, err
	}

	rooms := make([]Room, len(chatrooms))
	for i := range chatrooms {
		rooms[i] = Room{Chatroom: chatrooms[i], Members: members[chatrooms[i].ID]}
	}
	return rooms, nil
}

// LatestMessage returns the newest message in a room, or nil if it has none.
func (s *RoomsStore) LatestMessage(ctx context.Context, roomID uuid.UUID) (*Message, error) {
	return latestMessage(ctx, s.db, roomID)
}

// CountUnread counts messages newer than member's watermark that the
// member did not send.
func (s *RoomsStore) CountUnread(ctx context.Context, member ChatroomMember) (int, error) {
	n, err := s.db.NewSelect().
		Model((*Message)(nil)).
		Where("room_id = ?", member.RoomID).
		Where("created_at > ?", member.LastReadAt).
		Where("sender_id <> ?", member.ID).
		Count(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "roomsStore.CountUnread.Count")
	}
	return n, nil
}

// UpdateLastRead moves the member's watermark forward to at. It reports
// false when no row matched, either because the member does not exist
// or because at is not newer than the stored watermark.
func (s *RoomsStore) UpdateLastRead(ctx context.Context, roomID, userID uuid.UUID, at time.Time) (bool, error) {
	at = at.UTC().Truncate(time.Microsecond)

	res, err := s.db.NewUpdate().
		Model((*ChatroomMember)(nil)).
		Set("last_read_at = ?", at).
		Where("room_id = ?", roomID).
		Where("user_id = ?", userID).
		Where("last_read_at < ?", at).
		Exec(ctx)
	if err != nil {
		return false, errors.Wrap(err, "roomsStore.UpdateLastRead.Update")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "roomsStore.UpdateLastRead.RowsAffected")
	}
	return n == 1, nil
}

// SetBlocked sets is_blocked on counterpartID's row in the room, provided
// requesterID is the other member. It reports false when no such row
// exists.
func (s *RoomsStore) SetBlocked(ctx context.Context, roomID, requesterID, counterpartID uuid.UUID, blocked bool) (bool, error) {
	requesterIsMember := s.db.NewSelect().
		TableExpr("chatroom_members AS o").
		ColumnExpr("1").
		Where("o.room_id = ?", roomID).
		Where("o.user_id = ?", requesterID)

	res, err := s.db.NewUpdate().
		Model((*ChatroomMember)(nil)).
		Set("is_blocked = ?", blocked).
		Where("cm.room_id = ?", roomID).
		Where("cm.user_id = ?", counterpartID).
		Where("cm.user_id <> ?", requesterID).
		Where("EXISTS (?)", requesterIsMember).
		Exec(ctx)
	if err != nil {
		return false, errors.Wrap(err, "roomsStore.SetBlocked.Update")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "roomsStore.SetBlocked.RowsAffected")
	}
	return n == 1, nil
}

func roomByPairKey(ctx context.Context, db bun.IDB, key string) (*Room, error) {
	chatroom := new(Chatroom)
	if err := db.NewSelect().Model(chatroom).Where("pair_key = ?", key).Scan(ctx); err != nil {
		return nil, errors.Wrap(err, "roomsStore.roomByPairKey.Scan")
	}
	members, err := membersOf(ctx, db, chatroom.ID)
	if err != nil {
		return nil, err
	}
	return &Room{Chatroom: *chatroom, Members: members[chatroom.ID]}, nil
}

// membersOf loads member rows for the given rooms, keyed by room id.
func membersOf(ctx context.Context, db bun.IDB, roomIDs ...uuid.UUID) (map[uuid.UUID][]ChatroomMember, error) {
	var members []ChatroomMember
	if err := db.NewSelect().
		Model(&members).
		Where("room_id IN (?)", bun.In(roomIDs)).
		OrderExpr("room_id, id").
		Scan(ctx); err != nil {
		return nil, errors.Wrap(err, "roomsStore.membersOf.Scan")
	}

	out := make(map[uuid.UUID][]ChatroomMember, len(roomIDs))
	for _, m := range members {
		out[m.RoomID] = append(out[m.RoomID], m)
	}
	return out, nil
}

func latestMessage(ctx context.Context, db bun.IDB, roomID uuid.UUID) (*Message, error) {
	msg := new(Message)
	err := db.NewSelect().
		Model(msg).
		Where("room_id = ?", roomID).
		OrderExpr("created_at DESC, id DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "roomsStore.latestMessage.Scan")
	}
	return msg, nil
}
