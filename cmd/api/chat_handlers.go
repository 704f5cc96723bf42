package main

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/PaulBabatuyi/pairchat/internal/apperror"
	"github.com/PaulBabatuyi/pairchat/internal/chat"
	"github.com/PaulBabatuyi/pairchat/internal/envelope"
)

type findRoomRequest struct {
	Email string `json:"email"`
}

type readReceiptRequest struct {
	LastReadAt time.Time `json:"lastReadAt"`
}

type blockRequest struct {
	UserID uuid.UUID `json:"userId"`
}

// handleFindOrCreateRoom answers 201 for a new room and 200 when the
// pair already had one.
func (s *Server) handleFindOrCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req findRoomRequest
	if err := decodeJSON(w, r, &req); err != nil {
		envelope.Error(w, err)
		return
	}

	room, err := s.chat.FindOrCreateRoom(r.Context(), identity(r).UserID, req.Email)
	if err != nil {
		envelope.Error(w, err)
		return
	}

	status := http.StatusCreated
	if room.AlreadyExists != nil && *room.AlreadyExists {
		status = http.StatusOK
	}
	envelope.JSON(w, status, envelope.OK(room))
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.chat.ListRooms(r.Context(), identity(r).UserID)
	if err != nil {
		envelope.Error(w, err)
		return
	}
	envelope.JSON(w, http.StatusOK, envelope.OK(rooms))
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	roomID, err := pathUUID(r, "roomID")
	if err != nil {
		envelope.Error(w, err)
		return
	}
	room, err := s.chat.GetRoom(r.Context(), identity(r).UserID, roomID)
	if err != nil {
		envelope.Error(w, err)
		return
	}
	envelope.JSON(w, http.StatusOK, envelope.OK(room))
}

// handleListMessages serves one page of history. ?offset counts messages
// already loaded, newest first.
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	roomID, err := pathUUID(r, "roomID")
	if err != nil {
		envelope.Error(w, err)
		return
	}

	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil {
			envelope.Error(w, apperror.Validation("offset", "offset must be a number"))
			return
		}
	}

	page, err := s.chat.ListMessages(r.Context(), identity(r).UserID, roomID, offset)
	if err != nil {
		envelope.Error(w, err)
		return
	}
	envelope.JSON(w, http.StatusOK, envelope.OK(page))
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	roomID, err := pathUUID(r, "roomID")
	if err != nil {
		envelope.Error(w, err)
		return
	}
	var req chat.SendPayload
	if err := decodeJSON(w, r, &req); err != nil {
		envelope.Error(w, err)
		return
	}

	msg, err := s.chat.SendMessage(r.Context(), identity(r).UserID, roomID, req)
	if err != nil {
		envelope.Error(w, err)
		return
	}
	envelope.JSON(w, http.StatusCreated, envelope.OK(msg))
}

// handleDeleteMessage returns the room view refreshed after the delete.
func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	roomID, err := pathUUID(r, "roomID")
	if err != nil {
		envelope.Error(w, err)
		return
	}
	messageID, err := pathUUID(r, "messageID")
	if err != nil {
		envelope.Error(w, err)
		return
	}

	room, err := s.chat.DeleteMessage(r.Context(), identity(r).UserID, roomID, messageID)
	if err != nil {
		envelope.Error(w, err)
		return
	}
	envelope.JSON(w, http.StatusOK, envelope.OK(room))
}

// handleReadReceipt reports a stale receipt as updated=false rather than
// as an error; clients send receipts optimistically.
func (s *Server) handleReadReceipt(w http.ResponseWriter, r *http.Request) {
	roomID, err := pathUUID(r, "roomID")
	if err != nil {
		envelope.Error(w, err)
		return
	}
	var req readReceiptRequest
	if err := decodeJSON(w, r, &req); err != nil {
		envelope.Error(w, err)
		return
	}

	err = s.chat.UpdateReadReceipt(r.Context(), identity(r).UserID, roomID, req.LastReadAt)
	if errors.Is(err, apperror.ErrStaleReadReceipt) {
		envelope.JSON(w, http.StatusOK, envelope.OK(map[string]bool{"updated": false}))
		return
	}
	if err != nil {
		envelope.Error(w, err)
		return
	}
	envelope.JSON(w, http.StatusOK, envelope.OK(map[string]bool{"updated": true}))
}

func (s *Server) handleBlock(w http.ResponseWriter, r *http.Request) {
	s.setBlocked(w, r, true)
}

func (s *Server) handleUnblock(w http.ResponseWriter, r *http.Request) {
	s.setBlocked(w, r, false)
}

func (s *Server) setBlocked(w http.ResponseWriter, r *http.Request, blocked bool) {
	roomID, err := pathUUID(r, "roomID")
	if err != nil {
		envelope.Error(w, err)
		return
	}
	var req blockRequest
	if err := decodeJSON(w, r, &req); err != nil {
		envelope.Error(w, err)
		return
	}
	if req.UserID == uuid.Nil {
		envelope.Error(w, apperror.Validation("userId", "userId is required"))
		return
	}

	requester := identity(r).UserID
	if blocked {
		err = s.chat.BlockMember(r.Context(), requester, roomID, req.UserID)
	} else {
		err = s.chat.UnblockMember(r.Context(), requester, roomID, req.UserID)
	}
	if err != nil {
		envelope.Error(w, err)
		return
	}
	envelope.JSON(w, http.StatusOK, envelope.OK(map[string]bool{"blocked": blocked}))
}

// pathUUID parses a uuid route parameter.
func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, apperror.Validation(name, "invalid id")
	}
	return id, nil
}
