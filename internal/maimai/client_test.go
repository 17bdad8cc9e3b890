package maimai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cl, err := New(Options{
		BaseURL:     srv.URL,
		Timeout:     2 * time.Second,
		Retry:       2,
		RetryWait:   time.Millisecond,
		SessionWait: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	return cl
}

func TestFriendCodeValidation(t *testing.T) {
	require.True(t, ValidFriendCode("101680566000997"))
	require.True(t, CanonicalFriendCode("101680566000997"))
	require.False(t, ValidFriendCode("12AB"))
	require.False(t, ValidFriendCode("123456789"))
	require.True(t, ValidFriendCode("1234567890"))
	require.False(t, CanonicalFriendCode("1234567890"))
	require.Equal(t, "101680566000997", CleanFriendCode(" 1016-8056 6000997 "))
}

func TestFetchOne_StringRating(t *testing.T) {
	cl := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/player/101680566000997", r.URL.Path)
		_, _ = w.Write([]byte(`{"success":true,"ign":"ＪＤＣ","rating":"15234","trophy":"Master","icon_url":"https://x/i.png"}`))
	}))
	p, err := cl.FetchOne(context.Background(), "101680566000997")
	require.NoError(t, err)
	require.Equal(t, Player{FriendCode: "101680566000997", IGN: "ＪＤＣ", Rating: 15234, Trophy: "Master", IconURL: "https://x/i.png"}, p)
}

func TestFetchOne_SessionExpiredRetries(t *testing.T) {
	var calls int32
	cl := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			_, _ = w.Write([]byte(`{"success":false,"error":"Session expired, please retry"}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"ign":"A","rating":15000}`))
	}))
	p, err := cl.FetchOne(context.Background(), "101680566000997")
	require.NoError(t, err)
	require.Equal(t, 15000, p.Rating)
	require.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestFetchOne_ServerErrorExhaustsRetries(t *testing.T) {
	var calls int32
	cl := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	_, err := cl.FetchOne(context.Background(), "101680566000997")
	require.Error(t, err)
	require.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestFetchOne_APIErrorAndInvalidCode(t *testing.T) {
	var calls int32
	cl := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"success":false,"error":"Player not found"}`))
	}))
	_, err := cl.FetchOne(context.Background(), "101680566000997")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, "Player not found", apiErr.Message)

	_, err = cl.FetchOne(context.Background(), "12AB")
	require.ErrorIs(t, err, ErrInvalidFriendCode)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestFetchBatch(t *testing.T) {
	cl := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var body struct {
			FriendCodes []string `json:"friend_codes"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, []string{"101680566000997", "101232330856982"}, body.FriendCodes)
		_, _ = w.Write([]byte(`{"success":true,"results":[
			{"success":true,"friend_code":"101680566000997","ign":"A","rating":15000},
			{"success":false,"error":"Player not found"}
		]}`))
	}))
	res, err := cl.FetchBatch(context.Background(), []string{"101680566000997", "bad", "101232330856982"})
	require.NoError(t, err)
	require.Len(t, res, 3)
	require.NoError(t, res["101680566000997"].Err)
	require.Equal(t, "A", res["101680566000997"].Player.IGN)
	require.ErrorIs(t, res["bad"].Err, ErrInvalidFriendCode)
	var apiErr *APIError
	require.True(t, errors.As(res["101232330856982"].Err, &apiErr))
}

func TestFetchBatch_Size(t *testing.T) {
	cl := newTestClient(t, http.NotFoundHandler())
	_, err := cl.FetchBatch(context.Background(), nil)
	require.ErrorIs(t, err, ErrBatchSize)
	_, err = cl.FetchBatch(context.Background(), strings.Split(strings.Repeat("101680566000997,", 11), ",")[:11])
	require.ErrorIs(t, err, ErrBatchSize)
}

func TestStrictCodes(t *testing.T) {
	cl, err := New(Options{BaseURL: "http://127.0.0.1:1", Strict: true})
	require.NoError(t, err)
	_, err = cl.FetchOne(context.Background(), "1234567890")
	require.ErrorIs(t, err, ErrInvalidFriendCode)
}

func TestHealth(t *testing.T) {
	cl := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	}))
	h, err := cl.Health(context.Background())
	require.NoError(t, err)
	require.Equal(t, "healthy", h.Status)
}
