package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PaulBabatuyi/pairchat/internal/auth"
	"github.com/PaulBabatuyi/pairchat/internal/chat"
	"github.com/PaulBabatuyi/pairchat/internal/data"
	"github.com/PaulBabatuyi/pairchat/internal/middleware"
	"github.com/PaulBabatuyi/pairchat/internal/pgtest"
	"github.com/PaulBabatuyi/pairchat/internal/timeline"
)

type client struct {
	t     *testing.T
	base  string
	token string
}

func (c *client) call(method, path string, body any) (int, response) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer res.Body.Close()

	var out response
	require.NoError(c.t, json.NewDecoder(res.Body).Decode(&out))
	return res.StatusCode, out
}

func (c *client) register(email, name string) tokenResponse {
	c.t.Helper()
	status, resp := c.call(http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email": email, "displayName": name, "password": "integration-pass",
	})
	require.Equal(c.t, http.StatusCreated, status, resp.Errors)
	var tok tokenResponse
	require.NoError(c.t, json.Unmarshal(resp.Data, &tok))
	c.token = tok.Token
	return tok
}

func TestHTTPConversationFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	db, stop, err := pgtest.Start(ctx)
	if err != nil {
		t.Skipf("postgres container not available: %v", err)
	}
	defer stop()
	require.NoError(t, data.CreateSchema(ctx, db))

	users := data.NewUsersStore(db)
	svc := chat.NewService(users, data.NewRoomsStore(db), data.NewMessagesStore(db),
		timeline.NewFormatter(time.UTC), zerolog.Nop())
	limiter := middleware.NewLimiterStore(600, 100, time.Minute)
	defer limiter.Stop()

	srv := newServer(Deps{
		Users:   users,
		Chat:    svc,
		Auth:    auth.NewJWTManager("integration-secret", time.Hour),
		Limiter: limiter,
		Health:  map[string]Pinger{"postgres": users},
		Log:     zerolog.Nop(),
	})
	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	alice := &client{t: t, base: ts.URL}
	bob := &client{t: t, base: ts.URL}
	alice.register("alice@example.com", "Alice")
	bobTok := bob.register("Bob@Example.com", "Bob")

	status, resp := alice.call(http.MethodPost, "/api/v1/rooms", map[string]string{"email": "bob@example.com"})
	require.Equal(t, http.StatusCreated, status, resp.Errors)
	var room chat.RoomView
	require.NoError(t, json.Unmarshal(resp.Data, &room))
	assert.Equal(t, "Bob", room.Receiver.DisplayName)

	status, _ = bob.call(http.MethodPost, "/api/v1/rooms", map[string]string{"email": "alice@example.com"})
	require.Equal(t, http.StatusOK, status)

	roomPath := "/api/v1/rooms/" + room.ID.String()
	status, resp = bob.call(http.MethodPost, roomPath+"/messages", map[string]string{"content": "<b>hi</b>"})
	require.Equal(t, http.StatusCreated, status, resp.Errors)
	var msg chat.MessageView
	require.NoError(t, json.Unmarshal(resp.Data, &msg))
	assert.Equal(t, "&lt;b&gt;hi&lt;/b&gt;", msg.Content)

	status, resp = alice.call(http.MethodGet, "/api/v1/rooms", nil)
	require.Equal(t, http.StatusOK, status)
	var rooms []chat.RoomView
	require.NoError(t, json.Unmarshal(resp.Data, &rooms))
	require.Len(t, rooms, 1)
	assert.Equal(t, 1, rooms[0].UnreadCount)

	status, resp = alice.call(http.MethodPost, roomPath+"/read", map[string]time.Time{"lastReadAt": time.Now().Add(time.Second)})
	require.Equal(t, http.StatusOK, status, resp.Errors)
	assert.JSONEq(t, `{"updated":true}`, string(resp.Data))

	status, resp = alice.call(http.MethodPost, roomPath+"/block", map[string]any{"userId": bobTok.UserID})
	require.Equal(t, http.StatusOK, status, resp.Errors)

	status, resp = bob.call(http.MethodPost, roomPath+"/messages", map[string]string{"content": "are you there?"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "blocked by recipient", resp.Errors["root"])

	status, _ = bob.call(http.MethodDelete, roomPath+"/messages/"+msg.ID.String(), nil)
	assert.Equal(t, http.StatusOK, status)

	status, resp = bob.call(http.MethodDelete, "/api/v1/account", nil)
	require.Equal(t, http.StatusOK, status, resp.Errors)

	status, resp = alice.call(http.MethodGet, roomPath, nil)
	require.Equal(t, http.StatusOK, status, resp.Errors)
	require.NoError(t, json.Unmarshal(resp.Data, &room))
	assert.Equal(t, chat.DeletedUserName, room.Receiver.DisplayName)
	assert.True(t, room.Receiver.IsBlocked)

	health := &client{t: t, base: ts.URL}
	status, _ = health.call(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, status)
}
