package authclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/avinash-394/website/internal/domain/user"
)

// Storage is the durable half of the auth state. localstore.Store satisfies
// it; tests use an in-memory fake.
type Storage interface {
	SaveSession(token string, userJSON []byte) error
	LoadSession() (token string, userJSON []byte, ok bool, err error)
	Clear() error
}

// Snapshot is the read view handed to subscribers. The error overlay lives
// alongside the user axis: an authenticated user can carry a trailing error
// from a failed mutation.
type Snapshot struct {
	User    *user.User
	Loading bool
	Err     string
}

func (s Snapshot) Authenticated() bool {
	return s.User != nil
}

// Store owns the client auth state: current user, loading flag, error
// overlay, and the mirror in durable storage. Mutations are tagged with a
// monotonic sequence number; a response older than the newest applied one
// is discarded, so the displayed user always reflects the most recent
// *completed* mutation.
type Store struct {
	api   *Client
	local Storage

	mu       sync.Mutex
	user     *user.User
	token    string
	inflight int
	lastErr  string
	seq      uint64
	applied  uint64
	subs     []func(Snapshot)
}

func NewStore(api *Client, local Storage) *Store {
	return &Store{api: api, local: local}
}

// Subscribe registers a listener invoked on every state change, and fires
// it once with the current state.
func (s *Store) Subscribe(fn func(Snapshot)) {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	fn(snap)
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshotLocked()
}

// Token returns the current bearer token, empty when anonymous.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.token
}

// Rehydrate loads the stored session and optimistically trusts it, so the
// UI renders authenticated immediately on startup. Callers should follow
// with Revalidate (typically in a goroutine) to reconcile with the server.
func (s *Store) Rehydrate() {
	token, userJSON, ok, err := s.local.LoadSession()

	if err != nil || !ok {
		return
	}

	var u user.User

	if json.Unmarshal(userJSON, &u) != nil {
		// corrupt snapshot: drop the whole session
		_ = s.local.Clear()
		return
	}

	s.normalizeUser(&u)

	s.mu.Lock()
	s.user = &u
	s.token = token
	s.mu.Unlock()

	s.notify()
}

// Revalidate verifies the stored token against the server. A server-side
// rejection downgrades to anonymous and clears durable storage; a transport
// failure leaves the optimistic state alone so an offline start does not
// log the user out.
func (s *Store) Revalidate(ctx context.Context) error {
	s.mu.Lock()
	token := s.token
	s.mu.Unlock()

	if token == "" {
		return nil
	}

	u, err := s.api.Me(ctx, token)

	if err != nil {
		var apiErr *APIError

		if errors.As(err, &apiErr) {
			// only drop the session this token belonged to; a stale
			// rejection must not wipe a newer login
			s.mu.Lock()
			if s.token == token {
				s.user = nil
				s.token = ""
				s.lastErr = ""
				s.applied = s.seq
				_ = s.local.Clear()
			}
			s.mu.Unlock()

			s.notify()
		}

		return err
	}

	s.normalizeUser(&u)

	s.mu.Lock()
	if s.token == token { // still the same session
		s.user = &u
		s.persistLocked()
	}
	s.mu.Unlock()

	s.notify()
	return nil
}

// Login transitions anonymous -> loading -> authenticated. On failure the
// state stays anonymous with the error overlay set, and the error is
// returned so the form can stay put.
func (s *Store) Login(ctx context.Context, email, password string) error {
	n := s.begin()

	sess, err := s.api.Login(ctx, email, password)

	if err != nil {
		s.fail(n, err)
		return err
	}

	s.applySession(n, sess)
	return nil
}

func (s *Store) Signup(ctx context.Context, name, email, password string) error {
	n := s.begin()

	sess, err := s.api.Register(ctx, name, email, password)

	if err != nil {
		s.fail(n, err)
		return err
	}

	s.applySession(n, sess)
	return nil
}

// Logout never fails: state and durable storage are cleared regardless of
// storage errors, and any in-flight mutation response is fenced off.
func (s *Store) Logout() {
	s.mu.Lock()
	s.user = nil
	s.token = ""
	s.lastErr = ""
	s.applied = s.seq // stale responses must not resurrect the session
	_ = s.local.Clear()
	s.mu.Unlock()

	s.notify()
}

// UpdateProfile keeps the user authenticated on failure; only the error
// overlay changes.
func (s *Store) UpdateProfile(ctx context.Context, name, email string) error {
	n := s.begin()

	u, err := s.api.UpdateProfile(ctx, s.Token(), name, email)

	if err != nil {
		s.fail(n, err)
		return err
	}

	s.applyUser(n, u)
	return nil
}

func (s *Store) UploadAvatar(ctx context.Context, filename string, r io.Reader) error {
	n := s.begin()

	u, err := s.api.UploadAvatar(ctx, s.Token(), filename, r)

	if err != nil {
		s.fail(n, err)
		return err
	}

	s.applyUser(n, u)
	return nil
}

func (s *Store) ForgotPassword(ctx context.Context, email string) error {
	n := s.begin()

	err := s.api.ForgotPassword(ctx, email)

	if err != nil {
		s.fail(n, err)
		return err
	}

	s.complete(n)
	return nil
}

// ResetPassword consumes a reset ticket and, on success, switches to the
// fresh session the server returns.
func (s *Store) ResetPassword(ctx context.Context, ticket, password string) error {
	n := s.begin()

	sess, err := s.api.ResetPassword(ctx, ticket, password)

	if err != nil {
		s.fail(n, err)
		return err
	}

	s.applySession(n, sess)
	return nil
}

// ClearError drops only the error overlay.
func (s *Store) ClearError() {
	s.mu.Lock()
	s.lastErr = ""
	s.mu.Unlock()

	s.notify()
}

// --- internals ---

func (s *Store) begin() uint64 {
	s.mu.Lock()
	s.seq++
	n := s.seq
	s.inflight++
	s.lastErr = ""
	s.mu.Unlock()

	s.notify()
	return n
}

func (s *Store) complete(n uint64) {
	s.mu.Lock()
	s.inflight--
	if n > s.applied {
		s.applied = n
	}
	s.mu.Unlock()

	s.notify()
}

func (s *Store) fail(n uint64, err error) {
	s.mu.Lock()
	s.inflight--
	if n > s.applied {
		s.applied = n
	}
	s.lastErr = err.Error()
	s.mu.Unlock()

	s.notify()
}

func (s *Store) applySession(n uint64, sess Session) {
	s.normalizeUser(&sess.User)

	s.mu.Lock()
	s.inflight--
	if n > s.applied {
		s.applied = n
		u := sess.User
		s.user = &u
		s.token = sess.Token
		s.persistLocked()
	}
	s.mu.Unlock()

	s.notify()
}

func (s *Store) applyUser(n uint64, u user.User) {
	s.normalizeUser(&u)

	s.mu.Lock()
	s.inflight--
	if n > s.applied {
		s.applied = n
		s.user = &u
		s.persistLocked()
	}
	s.mu.Unlock()

	s.notify()
}

// persistLocked mirrors the in-memory session to durable storage while the
// state lock is held, so the two can never be observed out of step.
func (s *Store) persistLocked() {
	if s.user == nil || s.token == "" {
		return
	}

	raw, err := json.Marshal(s.user)

	if err != nil {
		return
	}

	_ = s.local.SaveSession(s.token, raw)
}

func (s *Store) normalizeUser(u *user.User) {
	u.Avatar = NormalizeAvatarURL(s.api.BaseURL(), u.Avatar)
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Loading: s.inflight > 0,
		Err:     s.lastErr,
	}

	if s.user != nil {
		u := *s.user
		snap.User = &u
	}

	return snap
}

func (s *Store) notify() {
	s.mu.Lock()
	snap := s.snapshotLocked()
	subs := make([]func(Snapshot), len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}
