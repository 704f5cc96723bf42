package data

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User maps to the users table.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           uuid.UUID `bun:"id,pk,type:uuid"`
	Email        string    `bun:"email,notnull,unique"`
	DisplayName  string    `bun:"display_name,notnull"`
	PasswordHash string    `bun:"password_hash,notnull"`
	Picture      *string   `bun:"picture"`
	Online       bool      `bun:"online,notnull"`
	LastSeen     time.Time `bun:"last_seen,notnull"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
	UpdatedAt    time.Time `bun:"updated_at,notnull"`
}

// Chatroom is a pairwise room. PairKey is unique per unordered user pair.
type Chatroom struct {
	bun.BaseModel `bun:"table:chatrooms,alias:r"`

	ID            uuid.UUID `bun:"id,pk,type:uuid"`
	PairKey       string    `bun:"pair_key,notnull,unique"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
	LastMessageAt time.Time `bun:"last_message_at,notnull"`
}

// ChatroomMember joins a user to a room. UserID is nil once the user
// has deleted their account. IsBlocked is set on the row of the member
// the other occupant has blocked.
type ChatroomMember struct {
	bun.BaseModel `bun:"table:chatroom_members,alias:cm"`

	ID         uuid.UUID  `bun:"id,pk,type:uuid"`
	RoomID     uuid.UUID  `bun:"room_id,notnull,type:uuid,unique:room_user"`
	UserID     *uuid.UUID `bun:"user_id,type:uuid,unique:room_user"`
	IsBlocked  bool       `bun:"is_blocked,notnull"`
	LastReadAt time.Time  `bun:"last_read_at,notnull"`
}

// BelongsTo reports whether the member row belongs to userID.
func (m *ChatroomMember) BelongsTo(userID uuid.UUID) bool {
	return m.UserID != nil && *m.UserID == userID
}

// Message is one ledger row. SenderID is the sending membership; UserID
// is the owning user and is nil once that user is deleted.
type Message struct {
	bun.BaseModel `bun:"table:messages,alias:m"`

	ID        uuid.UUID  `bun:"id,pk,type:uuid"`
	RoomID    uuid.UUID  `bun:"room_id,notnull,type:uuid"`
	SenderID  uuid.UUID  `bun:"sender_id,notnull,type:uuid"`
	UserID    *uuid.UUID `bun:"user_id,type:uuid"`
	Content   string     `bun:"content,notnull"`
	IsFile    bool       `bun:"is_file,notnull"`
	FileName  *string    `bun:"file_name"`
	FileType  *string    `bun:"file_type"`
	FileSize  *int64     `bun:"file_size"`
	CreatedAt time.Time  `bun:"created_at,notnull"`
}

// Room is a chatroom with both of its member rows.
type Room struct {
	Chatroom
	Members []ChatroomMember
}

// Member returns the row belonging to userID, if any.
func (r *Room) Member(userID uuid.UUID) (*ChatroomMember, bool) {
	for i := range r.Members {
		if r.Members[i].BelongsTo(userID) {
			return &r.Members[i], true
		}
	}
	return nil, false
}

// Counterpart returns the row that is not memberID.
func (r *Room) Counterpart(memberID uuid.UUID) (*ChatroomMember, bool) {
	for i := range r.Members {
		if r.Members[i].ID != memberID {
			return &r.Members[i], true
		}
	}
	return nil, false
}

// NewMessage is the input to MessagesStore.CreateMessage. Content is
// expected to be normalized already.
type NewMessage struct {
	RoomID   uuid.UUID
	UserID   uuid.UUID
	Content  string
	IsFile   bool
	FileName string
	FileType string
	FileSize int64
}

// DeleteResult describes a committed message delete.
type DeleteResult struct {
	Deleted Message
	Room    Room
	// Latest is the newest remaining message, nil when the room is empty.
	Latest *Message
	// ObjectKey names the stored file that no message references any
	// more. Empty for text messages.
	ObjectKey string
}
