package main

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/PaulBabatuyi/pairchat/internal/auth"
	"github.com/PaulBabatuyi/pairchat/internal/chat"
	"github.com/PaulBabatuyi/pairchat/internal/data"
	"github.com/PaulBabatuyi/pairchat/internal/files"
	"github.com/PaulBabatuyi/pairchat/internal/middleware"
)

// AccountStore is the subset of data.UsersStore the account handlers use.
type AccountStore interface {
	CreateUser(ctx context.Context, email, displayName, hashedPassword string) (*data.User, error)
	GetUserByEmail(ctx context.Context, email string) (*data.User, error)
	SetPresence(ctx context.Context, id uuid.UUID, online bool) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

// ChatService is the chat core as seen by the HTTP layer.
type ChatService interface {
	FindOrCreateRoom(ctx context.Context, requesterID uuid.UUID, counterpartEmail string) (*chat.RoomView, error)
	GetRoom(ctx context.Context, viewerID, roomID uuid.UUID) (*chat.RoomView, error)
	ListRooms(ctx context.Context, viewerID uuid.UUID) ([]chat.RoomView, error)
	SendMessage(ctx context.Context, senderID, roomID uuid.UUID, p chat.SendPayload) (*chat.MessageView, error)
	DeleteMessage(ctx context.Context, requesterID, roomID, messageID uuid.UUID) (*chat.RoomView, error)
	ListMessages(ctx context.Context, requesterID, roomID uuid.UUID, offset int) (*chat.MessagePage, error)
	UpdateReadReceipt(ctx context.Context, userID, roomID uuid.UUID, at time.Time) error
	BlockMember(ctx context.Context, requesterID, roomID, counterpartID uuid.UUID) error
	UnblockMember(ctx context.Context, requesterID, roomID, counterpartID uuid.UUID) error
}

// FileStore holds uploaded attachments.
type FileStore interface {
	Upload(ctx context.Context, ownerID uuid.UUID, fileName, contentType string, r io.Reader) (*files.Info, error)
	Open(ctx context.Context, key string) (io.ReadCloser, *files.Info, error)
}

// PresenceTracker records live presence.
type PresenceTracker interface {
	Heartbeat(ctx context.Context, userID uuid.UUID) error
	Offline(ctx context.Context, userID uuid.UUID) error
}

// Pinger is a dependency the health endpoint checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the HTTP handlers and their dependencies. files and
// presence are optional.
type Server struct {
	users    AccountStore
	chat     ChatService
	files    FileStore
	presence PresenceTracker
	auth     *auth.JWTManager
	limiter  *middleware.LimiterStore
	health   map[string]Pinger
	log      zerolog.Logger

	corsOrigins []string
	maxUpload   int64
}

// Deps collects what newServer needs.
type Deps struct {
	Users       AccountStore
	Chat        ChatService
	Files       FileStore
	Presence    PresenceTracker
	Auth        *auth.JWTManager
	Limiter     *middleware.LimiterStore
	Health      map[string]Pinger
	Log         zerolog.Logger
	CORSOrigins []string
	MaxUpload   int64
}

// newServer returns a ready-to-use Server wired with stores and auth manager.
func newServer(d Deps) *Server {
	if d.Health == nil {
		d.Health = map[string]Pinger{}
	}
	if len(d.CORSOrigins) == 0 {
		d.CORSOrigins = []string{"*"}
	}
	return &Server{
		users:       d.Users,
		chat:        d.Chat,
		files:       d.Files,
		presence:    d.Presence,
		auth:        d.Auth,
		limiter:     d.Limiter,
		health:      d.Health,
		log:         d.Log,
		corsOrigins: d.CORSOrigins,
		maxUpload:   d.MaxUpload,
	}
}

// routes builds the router.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(s.log))
	r.Use(middleware.Metrics)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"Retry-After"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.RateLimit(s.limiter, "register")).Post("/auth/register", s.handleRegister)
		r.With(middleware.RateLimit(s.limiter, "login")).Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(s.auth))

			r.Post("/auth/logout", s.handleLogout)
			r.Post("/presence/heartbeat", s.handleHeartbeat)
			r.Delete("/account", s.handleDeleteAccount)

			r.Get("/rooms", s.handleListRooms)
			r.Post("/rooms", s.handleFindOrCreateRoom)
			r.Route("/rooms/{roomID}", func(r chi.Router) {
				r.Get("/", s.handleGetRoom)
				r.Get("/messages", s.handleListMessages)
				r.Post("/messages", s.handleSendMessage)
				r.Delete("/messages/{messageID}", s.handleDeleteMessage)
				r.Post("/read", s.handleReadReceipt)
				r.Post("/block", s.handleBlock)
				r.Delete("/block", s.handleUnblock)
			})

			if s.files != nil {
				r.Post("/files", s.handleUpload)
				r.Get("/files/{key}", s.handleDownload)
			}
		})
	})

	return r
}
