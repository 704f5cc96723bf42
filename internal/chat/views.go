package chat

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/PaulBabatuyi/pairchat/internal/data"
	"github.com/PaulBabatuyi/pairchat/internal/timeline"
)

// DeletedUserName is shown in place of a user who deleted their account.
const DeletedUserName = "Deleted user"

const filePreviewPrefix = "📎 "

// UserView is a room occupant as shown to the other occupant.
type UserView struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"displayName"`
	Initial     string     `json:"initial"`
	Picture     string     `json:"picture"`
	IsOnline    bool       `json:"isOnline"`
	LastSeen    *time.Time `json:"lastSeen"`
	IsBlocked   bool       `json:"isBlocked"`
	IsDeleted   bool       `json:"isDeleted"`
}

// RoomView summarizes a room for one viewer. Sender is the viewer and
// Receiver the other occupant.
type RoomView struct {
	ID          uuid.UUID `json:"id"`
	LastSpoke   string    `json:"lastSpoke"`
	LastMessage string    `json:"lastMessage"`
	UnreadCount int       `json:"unreadCount"`
	Sender      UserView  `json:"sender"`
	Receiver    UserView  `json:"receiver"`
	// AlreadyExists is set only by FindOrCreateRoom.
	AlreadyExists *bool `json:"alreadyExists,omitempty"`
}

// MessageView is a message as seen by one viewer.
type MessageView struct {
	ID        uuid.UUID `json:"id"`
	IsSender  bool      `json:"isSender"`
	Content   string    `json:"content"`
	IsFile    bool      `json:"isFile"`
	FileType  string    `json:"fileType,omitempty"`
	FileName  string    `json:"fileName,omitempty"`
	FileSize  int64     `json:"fileSize,omitempty"`
	SentAt    string    `json:"sentAt"`
	CreatedAt time.Time `json:"createdAt"`
}

func (m MessageView) Time() time.Time  { return m.CreatedAt }
func (m MessageView) FromViewer() bool { return m.IsSender }
func (m MessageView) Key() string      { return m.ID.String() }

// MessagePage is one page of a room's history, grouped for display.
// Offset is where the next (older) page starts.
type MessagePage struct {
	Messages    []timeline.Item[MessageView] `json:"messages"`
	Offset      int                          `json:"offset"`
	IsFirstPage bool                         `json:"isFirstPage"`
	IsLastPage  bool                         `json:"isLastPage"`
}

// DeletedUserView is the placeholder for a member whose account is gone.
func DeletedUserView(blocked bool) UserView {
	return UserView{
		DisplayName: DeletedUserName,
		Initial:     "D",
		IsBlocked:   blocked,
		IsDeleted:   true,
	}
}

// newUserView projects a member row. user is nil when the account was
// deleted. online, when non-nil, overrides the stored online flag.
func newUserView(member *data.ChatroomMember, user *data.User, online map[uuid.UUID]bool) UserView {
	if member == nil {
		return DeletedUserView(false)
	}
	if member.UserID == nil || user == nil {
		return DeletedUserView(member.IsBlocked)
	}

	isOnline := user.Online
	if online != nil {
		isOnline = online[user.ID]
	}

	var picture string
	if user.Picture != nil {
		picture = *user.Picture
	}
	lastSeen := user.LastSeen

	return UserView{
		ID:          user.ID.String(),
		DisplayName: user.DisplayName,
		Initial:     initial(user.DisplayName, user.Email),
		Picture:     picture,
		IsOnline:    isOnline,
		LastSeen:    &lastSeen,
		IsBlocked:   member.IsBlocked,
	}
}

func initial(names ...string) string {
	for _, n := range names {
		n = strings.TrimSpace(n)
		if r, _ := utf8.DecodeRuneInString(n); r != utf8.RuneError {
			return string(unicode.ToUpper(r))
		}
	}
	return "?"
}

// newMessageView projects a stored message for the member viewerID.
func newMessageView(m *data.Message, viewerID uuid.UUID, f *timeline.Formatter) MessageView {
	v := MessageView{
		ID:        m.ID,
		IsSender:  m.SenderID == viewerID,
		Content:   m.Content,
		IsFile:    m.IsFile,
		SentAt:    f.Clock(m.CreatedAt),
		CreatedAt: m.CreatedAt,
	}
	if m.IsFile {
		if m.FileName != nil {
			v.FileName = *m.FileName
		}
		if m.FileType != nil {
			v.FileType = *m.FileType
		}
		if m.FileSize != nil {
			v.FileSize = *m.FileSize
		}
	}
	return v
}

// preview is the room-list text for the newest message.
func preview(m *data.Message) string {
	switch {
	case m == nil:
		return ""
	case m.IsFile && m.FileName != nil:
		return filePreviewPrefix + *m.FileName
	default:
		return m.Content
	}
}
