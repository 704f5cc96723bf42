package envelope

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PaulBabatuyi/pairchat/internal/apperror"
)

func decode(t *testing.T, b []byte) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	return out
}

func TestSuccessTracksErrors(t *testing.T) {
	b, err := json.Marshal(OK(map[string]int{"n": 1}))
	require.NoError(t, err)
	body := decode(t, b)
	assert.Equal(t, true, body["success"])
	assert.Empty(t, body["errors"])
	assert.Equal(t, map[string]any{"n": float64(1)}, body["data"])

	_, env := Failed(apperror.ErrSelfChat)
	b, err = json.Marshal(env)
	require.NoError(t, err)
	body = decode(t, b)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, map[string]any{"email": "you cannot start a chat with yourself"}, body["errors"])
	assert.Equal(t, map[string]any{}, body["data"])
}

func TestFailedStatuses(t *testing.T) {
	cases := []struct {
		err    error
		status int
		key    string
	}{
		{apperror.ErrEmptyMessage, http.StatusUnprocessableEntity, "content"},
		{apperror.ErrNoSuchUser, http.StatusConflict, "email"},
		{apperror.ErrEmailTaken, http.StatusConflict, "email"},
		{apperror.ErrStaleReadReceipt, http.StatusConflict, apperror.RootField},
		{apperror.ErrBlockedByRecipient, http.StatusForbidden, apperror.RootField},
		{apperror.ErrMissingCredentials, http.StatusUnauthorized, apperror.RootField},
		{apperror.ErrRateLimited, http.StatusTooManyRequests, apperror.RootField},
		{apperror.Transaction(errors.New("boom")), http.StatusInternalServerError, apperror.RootField},
	}
	for _, tc := range cases {
		status, env := Failed(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Contains(t, env.Errors, tc.key)
		assert.False(t, env.Success())
	}
}

func TestUnknownErrorsNeverLeak(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, errors.New("dial tcp 10.0.0.5:5432: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
	assert.Contains(t, rec.Body.String(), "something went wrong")
}
