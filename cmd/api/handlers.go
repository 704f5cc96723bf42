package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/PaulBabatuyi/pairchat/internal/apperror"
	"github.com/PaulBabatuyi/pairchat/internal/auth"
	"github.com/PaulBabatuyi/pairchat/internal/data"
	"github.com/PaulBabatuyi/pairchat/internal/envelope"
	"github.com/PaulBabatuyi/pairchat/internal/middleware"
	"github.com/PaulBabatuyi/pairchat/internal/normalize"
)

const (
	minPasswordLen = 8
	maxJSONBytes   = 1 << 20
	healthTimeout  = 2 * time.Second
)

type credentialsRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	UserID    uuid.UUID `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// handleRegister hashes the password, stores the user and returns a JWT.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		envelope.Error(w, err)
		return
	}

	email := normalize.Email(req.Email)
	if !normalize.ValidEmail(email) {
		envelope.Error(w, apperror.ErrInvalidEmail)
		return
	}
	name := normalize.DisplayName(req.DisplayName)
	if name == "" {
		envelope.Error(w, apperror.Validation("displayName", "display name is required"))
		return
	}
	if len(req.Password) < minPasswordLen {
		envelope.Error(w, apperror.Validation("password", "password must be at least 8 characters"))
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		s.internal(w, r, "hash password", err)
		return
	}

	user, err := s.users.CreateUser(r.Context(), email, name, hashed)
	if errors.Is(err, data.ErrDuplicateEmail) {
		envelope.Error(w, apperror.ErrEmailTaken)
		return
	}
	if err != nil {
		s.internal(w, r, "create user", err)
		return
	}

	s.writeToken(w, r, http.StatusCreated, user)
}

// handleLogin authenticates a user and returns a JWT. Unknown emails and
// wrong passwords get the same answer.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		envelope.Error(w, err)
		return
	}

	user, err := s.users.GetUserByEmail(r.Context(), normalize.Email(req.Email))
	if errors.Is(err, data.ErrUserNotFound) {
		envelope.Error(w, apperror.ErrInvalidCredentials)
		return
	}
	if err != nil {
		s.internal(w, r, "lookup user", err)
		return
	}
	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		envelope.Error(w, apperror.ErrInvalidCredentials)
		return
	}

	s.writeToken(w, r, http.StatusOK, user)
}

func (s *Server) writeToken(w http.ResponseWriter, r *http.Request, status int, user *data.User) {
	token, expiresAt, err := s.auth.GenerateToken(user.ID, user.Email)
	if err != nil {
		s.internal(w, r, "generate token", err)
		return
	}
	envelope.JSON(w, status, envelope.OK(tokenResponse{
		Token:     token,
		UserID:    user.ID,
		ExpiresAt: expiresAt,
	}))
}

// handleLogout marks the caller offline. The token itself stays valid
// until it expires.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	if s.presence != nil {
		if err := s.presence.Offline(r.Context(), id.UserID); err != nil {
			s.log.Warn().Err(err).Str("user", id.UserID.String()).Msg("presence offline failed")
		}
	}
	if err := s.setPresence(r.Context(), id.UserID, false); err != nil {
		envelope.Error(w, err)
		return
	}
	envelope.JSON(w, http.StatusOK, envelope.OK(map[string]bool{"online": false}))
}

// handleHeartbeat marks the caller online.
func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	if s.presence != nil {
		if err := s.presence.Heartbeat(r.Context(), id.UserID); err != nil {
			s.internal(w, r, "presence heartbeat", err)
			return
		}
	}
	if err := s.setPresence(r.Context(), id.UserID, true); err != nil {
		envelope.Error(w, err)
		return
	}
	envelope.JSON(w, http.StatusOK, envelope.OK(map[string]bool{"online": true}))
}

func (s *Server) setPresence(ctx context.Context, userID uuid.UUID, online bool) error {
	err := s.users.SetPresence(ctx, userID, online)
	if errors.Is(err, data.ErrUserNotFound) {
		return apperror.ErrRequesterNotFound
	}
	if err != nil {
		s.log.Error().Err(err).Str("user", userID.String()).Msg("set presence failed")
		return apperror.Transaction(err)
	}
	return nil
}

// handleDeleteAccount removes the caller. Their rooms and messages stay
// behind for the other occupant.
func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	err := s.users.DeleteUser(r.Context(), id.UserID)
	if errors.Is(err, data.ErrUserNotFound) {
		envelope.Error(w, apperror.ErrRequesterNotFound)
		return
	}
	if err != nil {
		s.internal(w, r, "delete user", err)
		return
	}
	if s.presence != nil {
		if err := s.presence.Offline(r.Context(), id.UserID); err != nil {
			s.log.Warn().Err(err).Str("user", id.UserID.String()).Msg("presence offline failed")
		}
	}
	envelope.JSON(w, http.StatusOK, envelope.OK(map[string]bool{"deleted": true}))
}

type healthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// handleHealth pings every configured backend.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := healthResponse{Status: "healthy", Services: map[string]string{}}
	for name, p := range s.health {
		if err := p.Ping(ctx); err != nil {
			s.log.Warn().Err(err).Str("service", name).Msg("health check failed")
			resp.Services[name] = "unhealthy"
			resp.Status = "degraded"
			continue
		}
		resp.Services[name] = "healthy"
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	envelope.JSON(w, status, envelope.OK(resp))
}

// internal logs err with the request and answers with an opaque 500.
func (s *Server) internal(w http.ResponseWriter, r *http.Request, msg string, err error) {
	s.log.Error().Err(err).Str("path", r.URL.Path).Msg(msg)
	envelope.Error(w, apperror.Transaction(err))
}

func identity(r *http.Request) middleware.Identity {
	id, _ := middleware.IdentityFrom(r.Context())
	return id
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperror.Validation(apperror.RootField, "request body is required")
		}
		return apperror.Validation(apperror.RootField, "malformed JSON body")
	}
	return nil
}
