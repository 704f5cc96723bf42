// Package chat implements pairwise rooms: resolving the room two users
// share, the message ledger, read receipts and blocking. It maps store
// outcomes to apperror values and renders results per viewer.
package chat

//go:generate mockgen -source=service.go -destination=mocks/mock_chat.go -package=mocks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/PaulBabatuyi/pairchat/internal/apperror"
	"github.com/PaulBabatuyi/pairchat/internal/data"
	"github.com/PaulBabatuyi/pairchat/internal/files"
	"github.com/PaulBabatuyi/pairchat/internal/metrics"
	"github.com/PaulBabatuyi/pairchat/internal/normalize"
	"github.com/PaulBabatuyi/pairchat/internal/timeline"
)

// PageSize is the number of messages per history page.
const PageSize = 25

const defaultObjectDeleteTimeout = 30 * time.Second

type UserStore interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*data.User, error)
	GetUserByEmail(ctx context.Context, email string) (*data.User, error)
	GetUsersByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*data.User, error)
}

type RoomStore interface {
	FindOrCreatePairRoom(ctx context.Context, a, b uuid.UUID) (*data.Room, bool, error)
	GetRoom(ctx context.Context, id uuid.UUID) (*data.Room, error)
	ListRoomsForUser(ctx context.Context, userID uuid.UUID) ([]data.Room, error)
	LatestMessage(ctx context.Context, roomID uuid.UUID) (*data.Message, error)
	CountUnread(ctx context.Context, member data.ChatroomMember) (int, error)
	UpdateLastRead(ctx context.Context, roomID, userID uuid.UUID, at time.Time) (bool, error)
	SetBlocked(ctx context.Context, roomID, requesterID, counterpartID uuid.UUID, blocked bool) (bool, error)
}

type MessageStore interface {
	CreateMessage(ctx context.Context, in data.NewMessage) (*data.Message, error)
	DeleteMessage(ctx context.Context, roomID, messageID, userID uuid.UUID) (*data.DeleteResult, error)
	ListMessages(ctx context.Context, roomID uuid.UUID, offset, limit int) ([]data.Message, error)
}

// ObjectStore holds the uploaded file objects that file messages point to.
type ObjectStore interface {
	// Owner reports who uploaded key. Unknown keys yield files.ErrNotFound.
	Owner(ctx context.Context, key string) (uuid.UUID, error)
	Delete(ctx context.Context, key string) error
}

// PresenceReader reports live presence for users.
type PresenceReader interface {
	Online(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]bool, error)
}

// Service is the chat core. It is safe for concurrent use.
type Service struct {
	users    UserStore
	rooms    RoomStore
	msgs     MessageStore
	objects  ObjectStore
	presence PresenceReader

	format        *timeline.Formatter
	log           zerolog.Logger
	tracer        trace.Tracer
	objectTimeout time.Duration

	// tracks detached object deletions
	wg sync.WaitGroup
}

// Option configures optional Service dependencies.
type Option func(*Service)

// WithObjectStore makes file messages check that the sender uploaded the
// attached object, and removes the object when its message is deleted.
func WithObjectStore(d ObjectStore, timeout time.Duration) Option {
	return func(s *Service) {
		s.objects = d
		if timeout > 0 {
			s.objectTimeout = timeout
		}
	}
}

// WithPresence makes views read online state from p instead of the
// stored flag.
func WithPresence(p PresenceReader) Option {
	return func(s *Service) { s.presence = p }
}

func NewService(users UserStore, rooms RoomStore, msgs MessageStore, format *timeline.Formatter, log zerolog.Logger, opts ...Option) *Service {
	if format == nil {
		format = timeline.NewFormatter(time.UTC)
	}
	s := &Service{
		users:         users,
		rooms:         rooms,
		msgs:          msgs,
		format:        format,
		log:           log.With().Str("component", "chat").Logger(),
		tracer:        otel.Tracer("github.com/PaulBabatuyi/pairchat/internal/chat"),
		objectTimeout: defaultObjectDeleteTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Wait blocks until detached object deletions have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "chat."+op, trace.WithAttributes(attrs...))
}

// finish records err on span. Internal failures are logged with their
// cause; the caller only sees the generic message.
func (s *Service) finish(span trace.Span, op string, err error) {
	defer span.End()
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if apperror.CodeOf(err) == apperror.CodeInternal {
		s.log.Error().Err(err).Str("op", op).Msg("chat operation failed")
	}
}

func observeTx(op string, start time.Time) {
	metrics.PostgresTxDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// FindOrCreateRoom returns the room requesterID shares with the user
// registered under counterpartEmail, creating it if needed.
func (s *Service) FindOrCreateRoom(ctx context.Context, requesterID uuid.UUID, counterpartEmail string) (_ *RoomView, err error) {
	ctx, span := s.start(ctx, "FindOrCreateRoom", attribute.String("requester", requesterID.String()))
	defer func() { s.finish(span, "FindOrCreateRoom", err) }()

	if !normalize.ValidEmail(counterpartEmail) {
		return nil, apperror.ErrInvalidEmail
	}
	email := normalize.Email(counterpartEmail)

	requester, err := s.users.GetUserByID(ctx, requesterID)
	if err != nil {
		if errors.Is(err, data.ErrUserNotFound) {
			return nil, apperror.ErrRequesterNotFound
		}
		return nil, apperror.Transaction(err)
	}
	if requester.Email == email {
		return nil, apperror.ErrSelfChat
	}

	counterpart, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, data.ErrUserNotFound) {
			return nil, apperror.ErrNoSuchUser
		}
		return nil, apperror.Transaction(err)
	}

	started := time.Now()
	room, created, err := s.rooms.FindOrCreatePairRoom(ctx, requester.ID, counterpart.ID)
	observeTx("find_or_create_room", started)
	if err != nil {
		return nil, apperror.Transaction(err)
	}
	if created {
		metrics.RoomsCreated.Inc()
		s.log.Info().Str("room_id", room.ID.String()).Msg("room created")
	} else {
		metrics.RoomsResolved.Inc()
	}

	known := map[uuid.UUID]*data.User{requester.ID: requester, counterpart.ID: counterpart}
	views, err := s.roomViews(ctx, requester.ID, []data.Room{*room}, known, nil)
	if err != nil {
		return nil, err
	}
	view := views[0]
	alreadyExists := !created
	view.AlreadyExists = &alreadyExists
	return &view, nil
}

// GetRoom renders one room for a member.
func (s *Service) GetRoom(ctx context.Context, viewerID, roomID uuid.UUID) (_ *RoomView, err error) {
	ctx, span := s.start(ctx, "GetRoom", attribute.String("room", roomID.String()))
	defer func() { s.finish(span, "GetRoom", err) }()

	room, err := s.memberRoom(ctx, viewerID, roomID)
	if err != nil {
		return nil, err
	}
	views, err := s.roomViews(ctx, viewerID, []data.Room{*room}, nil, nil)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// ListRooms renders every room of viewerID, most recently active first.
func (s *Service) ListRooms(ctx context.Context, viewerID uuid.UUID) (_ []RoomView, err error) {
	ctx, span := s.start(ctx, "ListRooms")
	defer func() { s.finish(span, "ListRooms", err) }()

	rooms, err := s.rooms.ListRoomsForUser(ctx, viewerID)
	if err != nil {
		return nil, apperror.Transaction(err)
	}
	views, err := s.roomViews(ctx, viewerID, rooms, nil, nil)
	if err != nil {
		return nil, err
	}
	if views == nil {
		views = []RoomView{}
	}
	return views, nil
}

// SendPayload is the client input for SendMessage.
type SendPayload struct {
	Content  string `json:"content"`
	IsFile   bool   `json:"isFile"`
	FileName string `json:"fileName,omitempty"`
	FileType string `json:"fileType,omitempty"`
	FileSize int64  `json:"fileSize,omitempty"`
}

// normalize validates p and returns the store input for it.
func (p SendPayload) normalize(roomID, senderID uuid.UUID) (data.NewMessage, error) {
	content := normalize.Content(p.Content)
	if content == "" {
		return data.NewMessage{}, apperror.ErrEmptyMessage
	}

	in := data.NewMessage{RoomID: roomID, UserID: senderID, Content: content, IsFile: p.IsFile}
	if p.IsFile {
		name := normalize.DisplayName(p.FileName)
		if name == "" || p.FileType == "" || p.FileSize <= 0 {
			return data.NewMessage{}, apperror.Validation("file", "file messages need a name, a type and a size")
		}
		in.FileName, in.FileType, in.FileSize = name, p.FileType, p.FileSize
	} else if p.FileName != "" || p.FileType != "" || p.FileSize != 0 {
		return data.NewMessage{}, apperror.Validation("file", "text messages cannot carry file details")
	}
	return in, nil
}

// SendMessage appends a message from senderID to a room.
func (s *Service) SendMessage(ctx context.Context, senderID, roomID uuid.UUID, p SendPayload) (_ *MessageView, err error) {
	ctx, span := s.start(ctx, "SendMessage",
		attribute.String("room", roomID.String()),
		attribute.Bool("file", p.IsFile))
	defer func() { s.finish(span, "SendMessage", err) }()

	in, err := p.normalize(roomID, senderID)
	if err != nil {
		return nil, err
	}
	if in.IsFile {
		if err := s.checkAttachment(ctx, senderID, in.Content); err != nil {
			return nil, err
		}
	}

	started := time.Now()
	msg, err := s.msgs.CreateMessage(ctx, in)
	observeTx("send_message", started)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrNotMember):
			return nil, apperror.ErrNotRoomMember
		case errors.Is(err, data.ErrBlockedByRecipient):
			return nil, apperror.ErrBlockedByRecipient
		case errors.Is(err, data.ErrRecipientBlocked):
			return nil, apperror.ErrRecipientBlocked
		case errors.Is(err, data.ErrFileInUse):
			return nil, apperror.ErrFileAlreadySent
		default:
			return nil, apperror.Transaction(err)
		}
	}

	kind := "text"
	if msg.IsFile {
		kind = "file"
	}
	metrics.MessagesSent.WithLabelValues(kind).Inc()

	view := newMessageView(msg, msg.SenderID, s.format)
	return &view, nil
}

// DeleteMessage removes a message its sender owns and returns the
// refreshed room summary. File objects are removed afterwards on a
// best-effort basis.
func (s *Service) DeleteMessage(ctx context.Context, requesterID, roomID, messageID uuid.UUID) (_ *RoomView, err error) {
	ctx, span := s.start(ctx, "DeleteMessage",
		attribute.String("room", roomID.String()),
		attribute.String("message", messageID.String()))
	defer func() { s.finish(span, "DeleteMessage", err) }()

	started := time.Now()
	res, err := s.msgs.DeleteMessage(ctx, roomID, messageID, requesterID)
	observeTx("delete_message", started)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrNotMember):
			return nil, apperror.ErrNotRoomMember
		case errors.Is(err, data.ErrMessageNotFound):
			return nil, apperror.ErrMessageNotFound
		case errors.Is(err, data.ErrNotSender):
			return nil, apperror.ErrNotMessageSender
		default:
			return nil, apperror.Transaction(err)
		}
	}
	metrics.MessagesDeleted.Inc()

	// empty unless no other message references the object
	s.deleteObject(res.ObjectKey)

	latest := map[uuid.UUID]*data.Message{res.Room.ID: res.Latest}
	views, err := s.roomViews(ctx, requesterID, []data.Room{res.Room}, nil, latest)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// checkAttachment accepts a file key only if it names an object the
// sender uploaded. Without an object store only the key format is checked.
func (s *Service) checkAttachment(ctx context.Context, senderID uuid.UUID, key string) error {
	if _, err := ulid.ParseStrict(key); err != nil {
		return apperror.ErrUnknownFile
	}
	if s.objects == nil {
		return nil
	}

	owner, err := s.objects.Owner(ctx, key)
	switch {
	case errors.Is(err, files.ErrNotFound), errors.Is(err, files.ErrInvalidKey):
		return apperror.ErrUnknownFile
	case err != nil:
		return apperror.Transaction(err)
	case owner != senderID:
		return apperror.ErrFileNotOwned
	}
	return nil
}

// deleteObject removes a file object in the background. The request may
// already be done, so it runs on its own context.
func (s *Service) deleteObject(key string) {
	if s.objects == nil || key == "" {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.objectTimeout)
		defer cancel()

		if err := s.objects.Delete(ctx, key); err != nil {
			metrics.ObjectDeletions.WithLabelValues("failed").Inc()
			s.log.Warn().Err(err).Str("key", key).Msg("failed to delete file object")
			return
		}
		metrics.ObjectDeletions.WithLabelValues("deleted").Inc()
	}()
}

// ListMessages returns one page of a room's history, newest page first.
func (s *Service) ListMessages(ctx context.Context, requesterID, roomID uuid.UUID, offset int) (_ *MessagePage, err error) {
	ctx, span := s.start(ctx, "ListMessages",
		attribute.String("room", roomID.String()),
		attribute.Int("offset", offset))
	defer func() { s.finish(span, "ListMessages", err) }()

	if offset < 0 {
		return nil, apperror.ErrInvalidPagingOffset
	}

	room, err := s.memberRoom(ctx, requesterID, roomID)
	if err != nil {
		return nil, err
	}
	member, _ := room.Member(requesterID)

	// one extra row decides whether an older page exists
	rows, err := s.msgs.ListMessages(ctx, roomID, offset, PageSize+1)
	if err != nil {
		return nil, apperror.Transaction(err)
	}
	isLast := len(rows) <= PageSize
	if !isLast {
		rows = rows[:PageSize]
	}

	views := make([]MessageView, len(rows))
	for i := range rows {
		views[i] = newMessageView(&rows[i], member.ID, s.format)
	}

	return &MessagePage{
		Messages:    timeline.Group(views, s.format.Location),
		Offset:      offset + len(rows),
		IsFirstPage: offset == 0,
		IsLastPage:  isLast,
	}, nil
}

// UpdateReadReceipt advances userID's read watermark in a room. A
// timestamp that is not newer than the stored one, or a caller who is
// not a member, yields apperror.ErrStaleReadReceipt.
func (s *Service) UpdateReadReceipt(ctx context.Context, userID, roomID uuid.UUID, at time.Time) (err error) {
	ctx, span := s.start(ctx, "UpdateReadReceipt", attribute.String("room", roomID.String()))
	defer func() { s.finish(span, "UpdateReadReceipt", err) }()

	if at.IsZero() {
		return apperror.Validation("lastReadAt", "lastReadAt is required")
	}

	ok, err := s.rooms.UpdateLastRead(ctx, roomID, userID, at)
	if err != nil {
		return apperror.Transaction(err)
	}
	if !ok {
		metrics.ReadReceipts.WithLabelValues("stale").Inc()
		return apperror.ErrStaleReadReceipt
	}
	metrics.ReadReceipts.WithLabelValues("applied").Inc()
	return nil
}

// BlockMember stops counterpartID from messaging requesterID in a room.
func (s *Service) BlockMember(ctx context.Context, requesterID, roomID, counterpartID uuid.UUID) error {
	return s.setBlocked(ctx, requesterID, roomID, counterpartID, true)
}

// UnblockMember reverses BlockMember.
func (s *Service) UnblockMember(ctx context.Context, requesterID, roomID, counterpartID uuid.UUID) error {
	return s.setBlocked(ctx, requesterID, roomID, counterpartID, false)
}

func (s *Service) setBlocked(ctx context.Context, requesterID, roomID, counterpartID uuid.UUID, blocked bool) (err error) {
	action := "unblock"
	if blocked {
		action = "block"
	}
	ctx, span := s.start(ctx, "SetBlocked",
		attribute.String("room", roomID.String()),
		attribute.String("action", action))
	defer func() { s.finish(span, "SetBlocked", err) }()

	if requesterID == counterpartID {
		return apperror.Validation("userId", "you cannot "+action+" yourself")
	}

	ok, err := s.rooms.SetBlocked(ctx, roomID, requesterID, counterpartID, blocked)
	if err != nil {
		return apperror.Transaction(err)
	}
	if !ok {
		return apperror.ErrMemberNotFound
	}
	metrics.BlockActions.WithLabelValues(action).Inc()
	return nil
}

// memberRoom loads a room viewerID belongs to. Missing rooms and rooms
// of other users look the same to the caller.
func (s *Service) memberRoom(ctx context.Context, viewerID, roomID uuid.UUID) (*data.Room, error) {
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, data.ErrRoomNotFound) {
			return nil, apperror.ErrNotRoomMember
		}
		return nil, apperror.Transaction(err)
	}
	if _, ok := room.Member(viewerID); !ok {
		return nil, apperror.ErrNotRoomMember
	}
	return room, nil
}

// roomViews renders rooms for viewerID. known holds users already
// loaded; latest holds newest messages already known per room (a nil
// entry means the room is empty).
func (s *Service) roomViews(ctx context.Context, viewerID uuid.UUID, rooms []data.Room, known map[uuid.UUID]*data.User, latest map[uuid.UUID]*data.Message) ([]RoomView, error) {
	if len(rooms) == 0 {
		return nil, nil
	}

	users := make(map[uuid.UUID]*data.User, len(known))
	for id, u := range known {
		users[id] = u
	}
	var missing, occupants []uuid.UUID
	seen := map[uuid.UUID]bool{}
	for _, room := range rooms {
		for _, m := range room.Members {
			if m.UserID == nil || seen[*m.UserID] {
				continue
			}
			seen[*m.UserID] = true
			occupants = append(occupants, *m.UserID)
			if _, ok := users[*m.UserID]; !ok {
				missing = append(missing, *m.UserID)
			}
		}
	}
	if len(missing) > 0 {
		loaded, err := s.users.GetUsersByIDs(ctx, missing)
		if err != nil {
			return nil, apperror.Transaction(err)
		}
		for id, u := range loaded {
			users[id] = u
		}
	}

	online := s.onlineUsers(ctx, occupants)

	views := make([]RoomView, 0, len(rooms))
	for i := range rooms {
		room := &rooms[i]
		viewer, ok := room.Member(viewerID)
		if !ok {
			return nil, apperror.ErrNotRoomMember
		}
		other, _ := room.Counterpart(viewer.ID)

		newest, ok := latest[room.ID]
		if !ok {
			var err error
			if newest, err = s.rooms.LatestMessage(ctx, room.ID); err != nil {
				return nil, apperror.Transaction(err)
			}
		}
		unread, err := s.rooms.CountUnread(ctx, *viewer)
		if err != nil {
			return nil, apperror.Transaction(err)
		}

		views = append(views, RoomView{
			ID:          room.ID,
			LastSpoke:   s.format.Relative(room.LastMessageAt),
			LastMessage: preview(newest),
			UnreadCount: unread,
			Sender:      newUserView(viewer, users[viewerID], online),
			Receiver:    newUserView(other, userOf(other, users), online),
		})
	}
	return views, nil
}

// onlineUsers reads live presence. It returns nil, meaning "use the
// stored flag", when presence is not configured or unreachable.
func (s *Service) onlineUsers(ctx context.Context, ids []uuid.UUID) map[uuid.UUID]bool {
	if s.presence == nil || len(ids) == 0 {
		return nil
	}
	online, err := s.presence.Online(ctx, ids...)
	if err != nil {
		s.log.Warn().Err(err).Msg("presence lookup failed; using stored flags")
		return nil
	}
	return online
}

func userOf(m *data.ChatroomMember, users map[uuid.UUID]*data.User) *data.User {
	if m == nil || m.UserID == nil {
		return nil
	}
	return users[*m.UserID]
}
