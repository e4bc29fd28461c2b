package authclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/avinash-394/website/internal/domain/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStorage struct {
	token    string
	userJSON []byte
	has      bool
}

func (m *memStorage) SaveSession(token string, userJSON []byte) error {
	m.token = token
	m.userJSON = append([]byte(nil), userJSON...)
	m.has = true
	return nil
}

func (m *memStorage) LoadSession() (string, []byte, bool, error) {
	return m.token, m.userJSON, m.has, nil
}

func (m *memStorage) Clear() error {
	m.token = ""
	m.userJSON = nil
	m.has = false
	return nil
}

func writeSession(w http.ResponseWriter, status int, u user.User, token string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"data": map[string]interface{}{"user": u, "token": token},
	})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code": code, "message": message,
	})
}

func testUser() user.User {
	return user.User{ID: "u1", Email: "ada@example.com", Name: "Ada", Avatar: "/uploads/avatars/a.png"}
}

func newTestStore(handler http.HandlerFunc) (*Store, *memStorage, *httptest.Server) {
	srv := httptest.NewServer(handler)
	local := &memStorage{}
	return NewStore(NewClient(srv.URL), local), local, srv
}

func TestLoginSuccess(t *testing.T) {
	store, local, srv := newTestStore(func(w http.ResponseWriter, r *http.Request) {
		writeSession(w, http.StatusOK, testUser(), "tok-1")
	})
	defer srv.Close()

	err := store.Login(context.Background(), "ada@example.com", "correct-horse")
	require.NoError(t, err)

	snap := store.Snapshot()
	require.True(t, snap.Authenticated())
	assert.Equal(t, "ada@example.com", snap.User.Email)
	assert.Empty(t, snap.Err)
	assert.False(t, snap.Loading)

	// avatar reference rewritten onto the API origin
	assert.Equal(t, srv.URL+"/uploads/avatars/a.png", snap.User.Avatar)

	// durable mirror written
	assert.Equal(t, "tok-1", local.token)
	assert.True(t, local.has)
	assert.Contains(t, string(local.userJSON), "ada@example.com")
}

func TestLoginFailureStaysAnonymous(t *testing.T) {
	store, local, srv := newTestStore(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "Email or password is incorrect.")
	})
	defer srv.Close()

	err := store.Login(context.Background(), "ada@example.com", "wrong")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "invalid_credentials", apiErr.Code)

	snap := store.Snapshot()
	assert.False(t, snap.Authenticated())
	assert.NotEmpty(t, snap.Err)
	assert.False(t, local.has)
}

func TestLogoutClearsEverything(t *testing.T) {
	store, local, srv := newTestStore(func(w http.ResponseWriter, r *http.Request) {
		writeSession(w, http.StatusOK, testUser(), "tok-1")
	})
	defer srv.Close()

	require.NoError(t, store.Login(context.Background(), "ada@example.com", "correct-horse"))
	require.True(t, store.Snapshot().Authenticated())

	store.Logout()

	snap := store.Snapshot()
	assert.False(t, snap.Authenticated())
	assert.Empty(t, store.Token())
	assert.False(t, local.has)
}

func TestRehydrateIsOptimistic(t *testing.T) {
	// no server: rehydration must not touch the network
	local := &memStorage{}
	raw, _ := json.Marshal(testUser())
	require.NoError(t, local.SaveSession("tok-stored", raw))

	store := NewStore(NewClient("http://127.0.0.1:1"), local)
	store.Rehydrate()

	snap := store.Snapshot()
	require.True(t, snap.Authenticated())
	assert.Equal(t, "ada@example.com", snap.User.Email)
	assert.Equal(t, "tok-stored", store.Token())
}

func TestRehydrateDropsCorruptSnapshot(t *testing.T) {
	local := &memStorage{}
	require.NoError(t, local.SaveSession("tok-stored", []byte("{not json")))

	store := NewStore(NewClient("http://127.0.0.1:1"), local)
	store.Rehydrate()

	assert.False(t, store.Snapshot().Authenticated())
	assert.False(t, local.has)
}

func TestRevalidateRejectionLogsOut(t *testing.T) {
	store, local, srv := newTestStore(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
	})
	defer srv.Close()

	raw, _ := json.Marshal(testUser())
	require.NoError(t, local.SaveSession("tok-stale", raw))
	store.Rehydrate()
	require.True(t, store.Snapshot().Authenticated())

	err := store.Revalidate(context.Background())
	require.Error(t, err)

	assert.False(t, store.Snapshot().Authenticated())
	assert.False(t, local.has)
}

// A background revalidation of an old token can come back 401 after a newer
// login has already completed. The rejection belongs to the old session and
// must not log the new one out.
func TestRevalidateStaleRejectionKeepsNewerSession(t *testing.T) {
	meStarted := make(chan struct{})
	meRelease := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/me" {
			close(meStarted)
			<-meRelease
			writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
			return
		}

		writeSession(w, http.StatusOK, testUser(), "tok-new")
	}))
	defer srv.Close()

	local := &memStorage{}
	raw, _ := json.Marshal(testUser())
	require.NoError(t, local.SaveSession("tok-old", raw))

	store := NewStore(NewClient(srv.URL), local)
	store.Rehydrate()

	done := make(chan error, 1)
	go func() { done <- store.Revalidate(context.Background()) }()

	<-meStarted
	require.NoError(t, store.Login(context.Background(), "ada@example.com", "correct-horse"))

	close(meRelease)
	require.Error(t, <-done)

	snap := store.Snapshot()
	require.True(t, snap.Authenticated(), "stale rejection must not wipe the new session")
	assert.Equal(t, "tok-new", store.Token())
	assert.True(t, local.has, "durable storage must keep the new session")
	assert.Equal(t, "tok-new", local.token)
}

func TestRevalidateNetworkFailureKeepsSession(t *testing.T) {
	local := &memStorage{}
	raw, _ := json.Marshal(testUser())
	require.NoError(t, local.SaveSession("tok-stored", raw))

	// nothing listening: transport error, not a server rejection
	store := NewStore(NewClient("http://127.0.0.1:1"), local)
	store.Rehydrate()

	err := store.Revalidate(context.Background())
	require.Error(t, err)

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)

	assert.True(t, store.Snapshot().Authenticated())
	assert.True(t, local.has)
}

func TestUpdateProfileFailureKeepsUser(t *testing.T) {
	loggedIn := false

	store, _, srv := newTestStore(func(w http.ResponseWriter, r *http.Request) {
		if !loggedIn {
			writeSession(w, http.StatusOK, testUser(), "tok-1")
			return
		}

		writeError(w, http.StatusConflict, "email_taken", "Email is already in use.")
	})
	defer srv.Close()

	require.NoError(t, store.Login(context.Background(), "ada@example.com", "correct-horse"))
	loggedIn = true

	err := store.UpdateProfile(context.Background(), "Ada", "grace@example.com")
	require.Error(t, err)

	snap := store.Snapshot()
	assert.True(t, snap.Authenticated(), "failed mutation must not log the user out")
	assert.Equal(t, "ada@example.com", snap.User.Email)
	assert.NotEmpty(t, snap.Err)
}

func TestStaleResponseDiscarded(t *testing.T) {
	store, _, srv := newTestStore(func(w http.ResponseWriter, r *http.Request) {
		writeSession(w, http.StatusOK, testUser(), "tok-1")
	})
	defer srv.Close()

	require.NoError(t, store.Login(context.Background(), "ada@example.com", "correct-horse"))

	// simulate two racing mutations completing out of order
	first := store.begin()
	second := store.begin()

	newer := testUser()
	newer.Name = "Ada L."
	store.applyUser(second, newer)

	older := testUser()
	older.Name = "Stale"
	store.applyUser(first, older)

	assert.Equal(t, "Ada L.", store.Snapshot().User.Name,
		"an older response must not overwrite a newer one")
}

func TestLogoutFencesInflightResponse(t *testing.T) {
	store, local, srv := newTestStore(func(w http.ResponseWriter, r *http.Request) {
		writeSession(w, http.StatusOK, testUser(), "tok-1")
	})
	defer srv.Close()

	require.NoError(t, store.Login(context.Background(), "ada@example.com", "correct-horse"))

	n := store.begin()
	store.Logout()

	// the response lands after logout; it must not resurrect the session
	store.applySession(n, Session{User: testUser(), Token: "tok-late"})

	assert.False(t, store.Snapshot().Authenticated())
	assert.Empty(t, store.Token())
	assert.False(t, local.has)
}

func TestClearError(t *testing.T) {
	store, _, srv := newTestStore(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "Email or password is incorrect.")
	})
	defer srv.Close()

	_ = store.Login(context.Background(), "ada@example.com", "wrong")
	require.NotEmpty(t, store.Snapshot().Err)

	store.ClearError()
	assert.Empty(t, store.Snapshot().Err)
}

func TestSubscribeFiresImmediately(t *testing.T) {
	store, _, srv := newTestStore(func(w http.ResponseWriter, r *http.Request) {
		writeSession(w, http.StatusOK, testUser(), "tok-1")
	})
	defer srv.Close()

	var got []Snapshot

	store.Subscribe(func(s Snapshot) { got = append(got, s) })
	require.Len(t, got, 1)
	assert.False(t, got[0].Authenticated())

	require.NoError(t, store.Login(context.Background(), "ada@example.com", "correct-horse"))

	// begin + applySession both notify
	require.GreaterOrEqual(t, len(got), 3)
	assert.True(t, got[len(got)-1].Authenticated())
}
