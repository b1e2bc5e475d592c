package balance

import (
	"context"
	"encoding/base64"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// SessionManager owns the single live session of one client instance.
// All access to the session id is serialized here; the gateway re-reads
// the id through the manager after every reopen so a retried call never
// carries a stale copy.
type SessionManager struct {
	mu            sync.Mutex
	id            string
	establishedAt time.Time
	password      string
	gw            *Gateway
}

// NewSessionManager creates a session manager for the given credential.
func NewSessionManager(password string) *SessionManager {
	return &SessionManager{password: password}
}

// SetGateway wires the request gateway. Set once during construction;
// the manager issues its open/close calls through it.
func (m *SessionManager) SetGateway(gw *Gateway) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gw = gw
}

// Current returns the live session id, if any.
func (m *SessionManager) Current() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.id, m.id != ""
}

// Ensure returns the live session id, opening a session first when none
// exists.
func (m *SessionManager) Ensure(ctx context.Context) (string, error) {
	if id, ok := m.Current(); ok {
		return id, nil
	}
	if err := m.Open(ctx); err != nil {
		return "", err
	}
	id, ok := m.Current()
	if !ok {
		return "", NewError(KindSession, "failed to establish a session")
	}
	return id, nil
}

// Open requests an encrypted session token from the device, derives the
// key from the configured password and stores the decrypted session id.
// Any decryption or auth problem leaves the session absent.
func (m *SessionManager) Open(ctx context.Context) error {
	resp, err := m.gw.Invoke(ctx, InvokeSpec{
		Service: sessionService,
		Method:  "OpenSession",
	})
	if err != nil {
		return err
	}

	token, err := base64.StdEncoding.DecodeString(resp.ChildText("SessionId"))
	if err != nil {
		m.clear()
		return WrapError(KindAuth, err, "session token is not valid base64")
	}
	salt, err := base64.StdEncoding.DecodeString(resp.ChildText("Salt"))
	if err != nil {
		m.clear()
		return WrapError(KindAuth, err, "session salt is not valid base64")
	}

	id, err := DecryptSessionID(DeriveKey(m.password, salt), token)
	if err != nil {
		m.clear()
		return err
	}

	m.mu.Lock()
	m.id = id
	m.establishedAt = time.Now()
	m.mu.Unlock()

	log.Info().Int("session_id_length", len(id)).Msg("Session opened")
	return nil
}

// Invalidate drops the local session id, typically after the device
// reported a session fault.
func (m *SessionManager) Invalidate() {
	m.clear()
	log.Warn().Msg("Session invalidated")
}

// Close releases the device session best-effort. Local state is cleared
// unconditionally so the client never believes it still holds a session
// after Close returns.
func (m *SessionManager) Close(ctx context.Context) {
	id, ok := m.Current()
	if !ok {
		log.Debug().Msg("No active session to close")
		return
	}

	defer m.clear()

	_, err := m.gw.Invoke(ctx, InvokeSpec{
		Service: sessionService,
		Method:  "CloseSession",
		Args:    sessionArgs(id),
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to close session on device; session may already be invalid")
		return
	}
	log.Info().Msg("Session closed")
}

func (m *SessionManager) clear() {
	m.mu.Lock()
	m.id = ""
	m.establishedAt = time.Time{}
	m.mu.Unlock()
}
