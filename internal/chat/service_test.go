package chat_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PaulBabatuyi/pairchat/internal/apperror"
	"github.com/PaulBabatuyi/pairchat/internal/chat"
	"github.com/PaulBabatuyi/pairchat/internal/chat/mocks"
	"github.com/PaulBabatuyi/pairchat/internal/data"
	"github.com/PaulBabatuyi/pairchat/internal/files"
	"github.com/PaulBabatuyi/pairchat/internal/timeline"
)

var fixedNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

type fixture struct {
	users   *mocks.MockUserStore
	rooms   *mocks.MockRoomStore
	msgs    *mocks.MockMessageStore
	objects *mocks.MockObjectStore
	svc     *chat.Service
}

func newFixture(t *testing.T, opts ...chat.Option) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &fixture{
		users:   mocks.NewMockUserStore(ctrl),
		rooms:   mocks.NewMockRoomStore(ctrl),
		msgs:    mocks.NewMockMessageStore(ctrl),
		objects: mocks.NewMockObjectStore(ctrl),
	}
	format := &timeline.Formatter{Location: time.UTC, Now: func() time.Time { return fixedNow }}
	opts = append([]chat.Option{chat.WithObjectStore(f.objects, time.Second)}, opts...)
	f.svc = chat.NewService(f.users, f.rooms, f.msgs, format, zerolog.Nop(), opts...)
	return f
}

func newUser(email, name string) *data.User {
	return &data.User{ID: uuid.New(), Email: email, DisplayName: name, LastSeen: fixedNow.Add(-time.Hour)}
}

func newRoom(a, b *data.User) *data.Room {
	created := fixedNow.Add(-48 * time.Hour)
	aID, bID := a.ID, b.ID
	roomID := uuid.New()
	return &data.Room{
		Chatroom: data.Chatroom{ID: roomID, CreatedAt: created, LastMessageAt: created},
		Members: []data.ChatroomMember{
			{ID: uuid.New(), RoomID: roomID, UserID: &aID, LastReadAt: created},
			{ID: uuid.New(), RoomID: roomID, UserID: &bID, LastReadAt: created},
		},
	}
}

// expectSummary stubs the per-room reads a RoomView needs.
func (f *fixture) expectSummary(room *data.Room, latest *data.Message, unread int) {
	f.rooms.EXPECT().LatestMessage(gomock.Any(), room.ID).Return(latest, nil)
	f.rooms.EXPECT().CountUnread(gomock.Any(), gomock.Any()).Return(unread, nil)
}

func TestFindOrCreateRoom(t *testing.T) {
	alice := newUser("alice@example.com", "alice")
	bob := newUser("bob@example.com", "Bob")

	t.Run("invalid email", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.FindOrCreateRoom(context.Background(), alice.ID, "not-an-email")
		assert.Equal(t, apperror.ErrInvalidEmail, err)
	})

	t.Run("self chat", func(t *testing.T) {
		f := newFixture(t)
		f.users.EXPECT().GetUserByID(gomock.Any(), alice.ID).Return(alice, nil)

		_, err := f.svc.FindOrCreateRoom(context.Background(), alice.ID, "  ALICE@example.com ")
		assert.Equal(t, apperror.ErrSelfChat, err)
	})

	t.Run("unknown counterpart", func(t *testing.T) {
		f := newFixture(t)
		f.users.EXPECT().GetUserByID(gomock.Any(), alice.ID).Return(alice, nil)
		f.users.EXPECT().GetUserByEmail(gomock.Any(), "carol@example.com").Return(nil, data.ErrUserNotFound)

		_, err := f.svc.FindOrCreateRoom(context.Background(), alice.ID, "Carol@example.com")
		appErr, ok := apperror.As(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeNotFound, appErr.Code)
		assert.Equal(t, "email", appErr.Key())
	})

	t.Run("requester gone", func(t *testing.T) {
		f := newFixture(t)
		f.users.EXPECT().GetUserByID(gomock.Any(), alice.ID).Return(nil, data.ErrUserNotFound)

		_, err := f.svc.FindOrCreateRoom(context.Background(), alice.ID, "bob@example.com")
		assert.Equal(t, apperror.ErrRequesterNotFound, err)
	})

	for _, created := range []bool{true, false} {
		f := newFixture(t)
		room := newRoom(alice, bob)
		f.users.EXPECT().GetUserByID(gomock.Any(), alice.ID).Return(alice, nil)
		f.users.EXPECT().GetUserByEmail(gomock.Any(), "bob@example.com").Return(bob, nil)
		f.rooms.EXPECT().FindOrCreatePairRoom(gomock.Any(), alice.ID, bob.ID).Return(room, created, nil)
		f.expectSummary(room, nil, 0)

		view, err := f.svc.FindOrCreateRoom(context.Background(), alice.ID, "bob@example.com")
		require.NoError(t, err)
		assert.Equal(t, room.ID, view.ID)
		require.NotNil(t, view.AlreadyExists)
		assert.Equal(t, !created, *view.AlreadyExists)
		assert.Equal(t, alice.ID.String(), view.Sender.ID)
		assert.Equal(t, "A", view.Sender.Initial)
		assert.Equal(t, bob.ID.String(), view.Receiver.ID)
		assert.Equal(t, "", view.LastMessage)
		assert.Equal(t, "Wednesday", view.LastSpoke)
	}

	t.Run("store failure is hidden", func(t *testing.T) {
		f := newFixture(t)
		f.users.EXPECT().GetUserByID(gomock.Any(), alice.ID).Return(alice, nil)
		f.users.EXPECT().GetUserByEmail(gomock.Any(), "bob@example.com").Return(bob, nil)
		f.rooms.EXPECT().FindOrCreatePairRoom(gomock.Any(), alice.ID, bob.ID).Return(nil, false, errors.New("connection reset"))

		_, err := f.svc.FindOrCreateRoom(context.Background(), alice.ID, "bob@example.com")
		appErr, ok := apperror.As(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeInternal, appErr.Code)
		assert.Equal(t, "something went wrong", appErr.Message)
	})
}

func TestSendMessageValidation(t *testing.T) {
	roomID, sender := uuid.New(), uuid.New()

	cases := []struct {
		name    string
		payload chat.SendPayload
		field   string
	}{
		{"blank", chat.SendPayload{Content: "   \n\t"}, "content"},
		{"file without size", chat.SendPayload{Content: "01HX", IsFile: true, FileName: "a.pdf", FileType: "application/pdf"}, "file"},
		{"file without name", chat.SendPayload{Content: "01HX", IsFile: true, FileType: "image/png", FileSize: 10}, "file"},
		{"text with file details", chat.SendPayload{Content: "hi", FileName: "a.pdf"}, "file"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.SendMessage(context.Background(), sender, roomID, tc.payload)
			appErr, ok := apperror.As(err)
			require.True(t, ok)
			assert.Equal(t, apperror.CodeInvalidArgument, appErr.Code)
			assert.Equal(t, tc.field, appErr.Key())
		})
	}
}

func filePayload(key string) chat.SendPayload {
	return chat.SendPayload{Content: key, IsFile: true, FileName: "photo.png", FileType: "image/png", FileSize: 512}
}

func TestSendFileMessageChecksUploader(t *testing.T) {
	const key = "01HZZZZZZZZZZZZZZZZZZZZZZZ"
	roomID, sender, member := uuid.New(), uuid.New(), uuid.New()

	t.Run("own upload is sent", func(t *testing.T) {
		f := newFixture(t)
		f.objects.EXPECT().Owner(gomock.Any(), key).Return(sender, nil)
		f.msgs.EXPECT().CreateMessage(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, in data.NewMessage) (*data.Message, error) {
				assert.True(t, in.IsFile)
				assert.Equal(t, key, in.Content)
				name, typ, size := in.FileName, in.FileType, in.FileSize
				return &data.Message{ID: uuid.New(), RoomID: roomID, SenderID: member, UserID: &sender,
					Content: key, IsFile: true, FileName: &name, FileType: &typ, FileSize: &size, CreatedAt: fixedNow}, nil
			})

		view, err := f.svc.SendMessage(context.Background(), sender, roomID, filePayload(key))
		require.NoError(t, err)
		assert.True(t, view.IsFile)
	})

	t.Run("someone else's upload is refused", func(t *testing.T) {
		f := newFixture(t)
		f.objects.EXPECT().Owner(gomock.Any(), key).Return(uuid.New(), nil)

		_, err := f.svc.SendMessage(context.Background(), sender, roomID, filePayload(key))
		assert.Equal(t, apperror.ErrFileNotOwned, err)
		assert.Equal(t, apperror.CodePermissionDenied, apperror.CodeOf(err))
	})

	t.Run("unknown object is refused", func(t *testing.T) {
		f := newFixture(t)
		f.objects.EXPECT().Owner(gomock.Any(), key).Return(uuid.Nil, files.ErrNotFound)

		_, err := f.svc.SendMessage(context.Background(), sender, roomID, filePayload(key))
		assert.Equal(t, apperror.ErrUnknownFile, err)
	})

	t.Run("malformed key never reaches the store", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.SendMessage(context.Background(), sender, roomID, filePayload("../../etc/passwd"))
		assert.Equal(t, apperror.ErrUnknownFile, err)
	})

	t.Run("key already attached elsewhere", func(t *testing.T) {
		f := newFixture(t)
		f.objects.EXPECT().Owner(gomock.Any(), key).Return(sender, nil)
		f.msgs.EXPECT().CreateMessage(gomock.Any(), gomock.Any()).Return(nil, data.ErrFileInUse)

		_, err := f.svc.SendMessage(context.Background(), sender, roomID, filePayload(key))
		assert.Equal(t, apperror.ErrFileAlreadySent, err)
		assert.Equal(t, apperror.CodeAlreadyExists, apperror.CodeOf(err))
	})

	t.Run("store failure is internal", func(t *testing.T) {
		f := newFixture(t)
		f.objects.EXPECT().Owner(gomock.Any(), key).Return(uuid.Nil, errors.New("mongo: no reachable servers"))

		_, err := f.svc.SendMessage(context.Background(), sender, roomID, filePayload(key))
		assert.Equal(t, apperror.CodeInternal, apperror.CodeOf(err))
	})
}

func TestSendMessageEscapesAndMarksSender(t *testing.T) {
	f := newFixture(t)
	roomID, sender, member := uuid.New(), uuid.New(), uuid.New()
	at := time.Date(2024, 3, 15, 9, 5, 0, 0, time.UTC)

	f.msgs.EXPECT().CreateMessage(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, in data.NewMessage) (*data.Message, error) {
			assert.Equal(t, "&lt;b&gt;hi&lt;/b&gt;", in.Content)
			assert.Equal(t, sender, in.UserID)
			return &data.Message{ID: uuid.New(), RoomID: roomID, SenderID: member, UserID: &sender, Content: in.Content, CreatedAt: at}, nil
		})

	view, err := f.svc.SendMessage(context.Background(), sender, roomID, chat.SendPayload{Content: "  <b>hi</b> "})
	require.NoError(t, err)
	assert.True(t, view.IsSender)
	assert.Equal(t, "09:05", view.SentAt)
	assert.False(t, view.IsFile)
}

func TestSendMessageErrorMapping(t *testing.T) {
	cases := []struct {
		storeErr error
		want     *apperror.AppError
	}{
		{data.ErrNotMember, apperror.ErrNotRoomMember},
		{data.ErrBlockedByRecipient, apperror.ErrBlockedByRecipient},
		{data.ErrRecipientBlocked, apperror.ErrRecipientBlocked},
	}
	for _, tc := range cases {
		t.Run(tc.want.Message, func(t *testing.T) {
			f := newFixture(t)
			f.msgs.EXPECT().CreateMessage(gomock.Any(), gomock.Any()).Return(nil, tc.storeErr)

			_, err := f.svc.SendMessage(context.Background(), uuid.New(), uuid.New(), chat.SendPayload{Content: "hi"})
			assert.Equal(t, tc.want, err)
			assert.Equal(t, apperror.CodePermissionDenied, apperror.CodeOf(err))
		})
	}

	t.Run("block reasons differ", func(t *testing.T) {
		assert.NotEqual(t, apperror.ErrBlockedByRecipient.Message, apperror.ErrRecipientBlocked.Message)
	})
}

func TestDeleteMessage(t *testing.T) {
	alice := newUser("alice@example.com", "Alice")
	bob := newUser("bob@example.com", "Bob")

	t.Run("last message resets the summary", func(t *testing.T) {
		f := newFixture(t)
		room := newRoom(alice, bob)
		msgID := uuid.New()
		f.msgs.EXPECT().DeleteMessage(gomock.Any(), room.ID, msgID, alice.ID).Return(&data.DeleteResult{
			Deleted: data.Message{ID: msgID, Content: "hello"},
			Room:    *room,
		}, nil)
		f.users.EXPECT().GetUsersByIDs(gomock.Any(), gomock.Any()).Return(map[uuid.UUID]*data.User{alice.ID: alice, bob.ID: bob}, nil)
		f.rooms.EXPECT().CountUnread(gomock.Any(), gomock.Any()).Return(0, nil)

		view, err := f.svc.DeleteMessage(context.Background(), alice.ID, room.ID, msgID)
		require.NoError(t, err)
		assert.Equal(t, "", view.LastMessage)
		assert.Equal(t, "Wednesday", view.LastSpoke)
	})

	t.Run("file object removed after commit", func(t *testing.T) {
		f := newFixture(t)
		room := newRoom(alice, bob)
		name := "photo.png"
		latest := &data.Message{ID: uuid.New(), IsFile: true, FileName: &name, Content: "01HXYZ", CreatedAt: fixedNow}
		room.LastMessageAt = fixedNow
		msgID := uuid.New()

		f.msgs.EXPECT().DeleteMessage(gomock.Any(), room.ID, msgID, alice.ID).Return(&data.DeleteResult{
			Deleted:   data.Message{ID: msgID, IsFile: true, Content: "01HOBJECTKEY"},
			Room:      *room,
			Latest:    latest,
			ObjectKey: "01HOBJECTKEY",
		}, nil)
		f.users.EXPECT().GetUsersByIDs(gomock.Any(), gomock.Any()).Return(map[uuid.UUID]*data.User{alice.ID: alice, bob.ID: bob}, nil)
		f.rooms.EXPECT().CountUnread(gomock.Any(), gomock.Any()).Return(0, nil)
		f.objects.EXPECT().Delete(gomock.Any(), "01HOBJECTKEY").Return(errors.New("gridfs down"))

		view, err := f.svc.DeleteMessage(context.Background(), alice.ID, room.ID, msgID)
		require.NoError(t, err)
		f.svc.Wait()
		assert.Equal(t, "📎 photo.png", view.LastMessage)
		assert.Equal(t, "12:00", view.LastSpoke)
	})

	t.Run("shared file object is kept", func(t *testing.T) {
		f := newFixture(t)
		room := newRoom(alice, bob)
		msgID := uuid.New()

		// the store names no object while another message still points at it
		f.msgs.EXPECT().DeleteMessage(gomock.Any(), room.ID, msgID, alice.ID).Return(&data.DeleteResult{
			Deleted: data.Message{ID: msgID, IsFile: true, Content: "01HZZZZZZZZZZZZZZZZZZZZZZZ"},
			Room:    *room,
		}, nil)
		f.users.EXPECT().GetUsersByIDs(gomock.Any(), gomock.Any()).Return(map[uuid.UUID]*data.User{alice.ID: alice, bob.ID: bob}, nil)
		f.rooms.EXPECT().CountUnread(gomock.Any(), gomock.Any()).Return(0, nil)
		f.objects.EXPECT().Delete(gomock.Any(), gomock.Any()).Times(0)

		_, err := f.svc.DeleteMessage(context.Background(), alice.ID, room.ID, msgID)
		require.NoError(t, err)
		f.svc.Wait()
	})

	cases := []struct {
		storeErr error
		want     *apperror.AppError
	}{
		{data.ErrNotMember, apperror.ErrNotRoomMember},
		{data.ErrMessageNotFound, apperror.ErrMessageNotFound},
		{data.ErrNotSender, apperror.ErrNotMessageSender},
	}
	for _, tc := range cases {
		t.Run(tc.want.Message, func(t *testing.T) {
			f := newFixture(t)
			f.msgs.EXPECT().DeleteMessage(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, tc.storeErr)
			_, err := f.svc.DeleteMessage(context.Background(), uuid.New(), uuid.New(), uuid.New())
			assert.Equal(t, tc.want, err)
		})
	}
}

func textMessages(n int, member uuid.UUID, start time.Time) []data.Message {
	out := make([]data.Message, n)
	for i := range out {
		// newest first, like the store
		out[i] = data.Message{ID: uuid.New(), SenderID: member, Content: "m", CreatedAt: start.Add(-time.Duration(i) * time.Minute)}
	}
	return out
}

func TestListMessages(t *testing.T) {
	alice := newUser("alice@example.com", "Alice")
	bob := newUser("bob@example.com", "Bob")

	t.Run("negative offset", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.ListMessages(context.Background(), alice.ID, uuid.New(), -1)
		assert.Equal(t, apperror.ErrInvalidPagingOffset, err)
	})

	t.Run("missing room is forbidden", func(t *testing.T) {
		f := newFixture(t)
		roomID := uuid.New()
		f.rooms.EXPECT().GetRoom(gomock.Any(), roomID).Return(nil, data.ErrRoomNotFound)
		_, err := f.svc.ListMessages(context.Background(), alice.ID, roomID, 0)
		assert.Equal(t, apperror.ErrNotRoomMember, err)
	})

	t.Run("outsider is forbidden", func(t *testing.T) {
		f := newFixture(t)
		room := newRoom(alice, bob)
		f.rooms.EXPECT().GetRoom(gomock.Any(), room.ID).Return(room, nil)
		_, err := f.svc.ListMessages(context.Background(), uuid.New(), room.ID, 0)
		assert.Equal(t, apperror.ErrNotRoomMember, err)
	})

	t.Run("full page fetches one extra row", func(t *testing.T) {
		f := newFixture(t)
		room := newRoom(alice, bob)
		f.rooms.EXPECT().GetRoom(gomock.Any(), room.ID).Return(room, nil)
		f.msgs.EXPECT().ListMessages(gomock.Any(), room.ID, 0, chat.PageSize+1).
			Return(textMessages(chat.PageSize+1, room.Members[0].ID, fixedNow), nil)

		page, err := f.svc.ListMessages(context.Background(), alice.ID, room.ID, 0)
		require.NoError(t, err)
		assert.True(t, page.IsFirstPage)
		assert.False(t, page.IsLastPage)
		assert.Equal(t, chat.PageSize, page.Offset)
		assert.Len(t, timeline.Flatten(page.Messages), chat.PageSize)
		require.Len(t, page.Messages, 2)
		assert.True(t, page.Messages[0].IsLabel())
		assert.True(t, page.Messages[1].Batch[0].IsSender)
	})

	t.Run("short page is last", func(t *testing.T) {
		f := newFixture(t)
		room := newRoom(alice, bob)
		f.rooms.EXPECT().GetRoom(gomock.Any(), room.ID).Return(room, nil)
		f.msgs.EXPECT().ListMessages(gomock.Any(), room.ID, 25, chat.PageSize+1).
			Return(textMessages(5, room.Members[0].ID, fixedNow), nil)

		page, err := f.svc.ListMessages(context.Background(), bob.ID, room.ID, 25)
		require.NoError(t, err)
		assert.False(t, page.IsFirstPage)
		assert.True(t, page.IsLastPage)
		assert.Equal(t, 30, page.Offset)
		assert.False(t, page.Messages[1].Batch[0].IsSender)
	})
}

func TestUpdateReadReceipt(t *testing.T) {
	roomID, userID := uuid.New(), uuid.New()
	at := fixedNow

	t.Run("zero time", func(t *testing.T) {
		f := newFixture(t)
		err := f.svc.UpdateReadReceipt(context.Background(), userID, roomID, time.Time{})
		assert.Equal(t, apperror.CodeInvalidArgument, apperror.CodeOf(err))
	})

	t.Run("applied", func(t *testing.T) {
		f := newFixture(t)
		f.rooms.EXPECT().UpdateLastRead(gomock.Any(), roomID, userID, at).Return(true, nil)
		assert.NoError(t, f.svc.UpdateReadReceipt(context.Background(), userID, roomID, at))
	})

	t.Run("stale", func(t *testing.T) {
		f := newFixture(t)
		f.rooms.EXPECT().UpdateLastRead(gomock.Any(), roomID, userID, at).Return(false, nil)
		err := f.svc.UpdateReadReceipt(context.Background(), userID, roomID, at)
		assert.Equal(t, apperror.ErrStaleReadReceipt, err)
		assert.Equal(t, apperror.CodeFailedPrecondition, apperror.CodeOf(err))
	})
}

func TestBlockAndUnblock(t *testing.T) {
	roomID, requester, other := uuid.New(), uuid.New(), uuid.New()

	t.Run("self", func(t *testing.T) {
		f := newFixture(t)
		err := f.svc.BlockMember(context.Background(), requester, roomID, requester)
		assert.Equal(t, apperror.CodeInvalidArgument, apperror.CodeOf(err))
	})

	t.Run("block", func(t *testing.T) {
		f := newFixture(t)
		f.rooms.EXPECT().SetBlocked(gomock.Any(), roomID, requester, other, true).Return(true, nil)
		assert.NoError(t, f.svc.BlockMember(context.Background(), requester, roomID, other))
	})

	t.Run("unblock", func(t *testing.T) {
		f := newFixture(t)
		f.rooms.EXPECT().SetBlocked(gomock.Any(), roomID, requester, other, false).Return(true, nil)
		assert.NoError(t, f.svc.UnblockMember(context.Background(), requester, roomID, other))
	})

	t.Run("no matching member", func(t *testing.T) {
		f := newFixture(t)
		f.rooms.EXPECT().SetBlocked(gomock.Any(), roomID, requester, other, true).Return(false, nil)
		err := f.svc.BlockMember(context.Background(), requester, roomID, other)
		assert.Equal(t, apperror.ErrMemberNotFound, err)
	})
}

func TestListRoomsUsesPresenceAndPlaceholders(t *testing.T) {
	ctrl := gomock.NewController(t)
	presence := mocks.NewMockPresenceReader(ctrl)
	f := newFixture(t, chat.WithPresence(presence))

	alice := newUser("alice@example.com", "Alice")
	bob := newUser("bob@example.com", "Bob")
	bob.Online = true
	withBob := newRoom(alice, bob)
	orphan := newRoom(alice, newUser("gone@example.com", "Gone"))
	orphan.Members[1].UserID = nil
	orphan.Members[1].IsBlocked = true

	f.rooms.EXPECT().ListRoomsForUser(gomock.Any(), alice.ID).Return([]data.Room{*withBob, *orphan}, nil)
	f.users.EXPECT().GetUsersByIDs(gomock.Any(), gomock.Any()).Return(map[uuid.UUID]*data.User{alice.ID: alice, bob.ID: bob}, nil)
	presence.EXPECT().Online(gomock.Any(), gomock.Any()).Return(map[uuid.UUID]bool{alice.ID: true}, nil)
	f.rooms.EXPECT().LatestMessage(gomock.Any(), gomock.Any()).Return(nil, nil).Times(2)
	f.rooms.EXPECT().CountUnread(gomock.Any(), gomock.Any()).Return(3, nil).Times(2)

	views, err := f.svc.ListRooms(context.Background(), alice.ID)
	require.NoError(t, err)
	require.Len(t, views, 2)

	// presence wins over the stored flag
	assert.True(t, views[0].Sender.IsOnline)
	assert.False(t, views[0].Receiver.IsOnline)
	assert.Equal(t, 3, views[0].UnreadCount)
	assert.Nil(t, views[0].AlreadyExists)

	assert.Equal(t, chat.DeletedUserView(true), views[1].Receiver)
	assert.Equal(t, "", views[1].Receiver.ID)
}

func TestListRoomsEmpty(t *testing.T) {
	f := newFixture(t)
	id := uuid.New()
	f.rooms.EXPECT().ListRoomsForUser(gomock.Any(), id).Return(nil, nil)

	views, err := f.svc.ListRooms(context.Background(), id)
	require.NoError(t, err)
	assert.NotNil(t, views)
	assert.Empty(t, views)
}
