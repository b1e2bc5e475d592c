package balance

import (
	"context"
	"crypto/aes"
	"encoding/base64"
	"encoding/xml"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xiaomguo/sdl2-solid-dosing/internal/wire"
)

// step is one scripted response of the fake invoker.
type step struct {
	node *wire.Node
	err  error
}

type recordedCall struct {
	Service string
	Method  string
	Args    []wire.Arg
}

// fakeInvoker replays scripted responses per method. A queue with more
// than one step pops; the last remaining step repeats, so polling loops
// can be scripted with a single terminal response.
type fakeInvoker struct {
	t *testing.T

	mu     sync.Mutex
	queues map[string][]step
	calls  []recordedCall
}

func newFakeInvoker(t *testing.T) *fakeInvoker {
	return &fakeInvoker{t: t, queues: make(map[string][]step)}
}

func (f *fakeInvoker) respond(method string, nodes ...*wire.Node) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range nodes {
		f.queues[method] = append(f.queues[method], step{node: n})
	}
}

func (f *fakeInvoker) fail(method string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, err := range errs {
		f.queues[method] = append(f.queues[method], step{err: err})
	}
}

func (f *fakeInvoker) Call(_ context.Context, service, method string, args []wire.Arg) (*wire.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, recordedCall{Service: service, Method: method, Args: args})

	queue := f.queues[method]
	require.NotEmpty(f.t, queue, "unexpected call to %s.%s", service, method)

	next := queue[0]
	if len(queue) > 1 {
		f.queues[method] = queue[1:]
	}
	return next.node, next.err
}

func (f *fakeInvoker) callsTo(method string) []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedCall
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// parseNode builds a response node from literal XML.
func parseNode(t *testing.T, raw string) *wire.Node {
	t.Helper()
	n := &wire.Node{}
	require.NoError(t, xml.Unmarshal([]byte(raw), n))
	return n
}

func successNode(t *testing.T, inner string) *wire.Node {
	t.Helper()
	return parseNode(t, "<Result><Outcome>Success</Outcome>"+inner+"</Result>")
}

// encryptToken is the test-side counterpart of DecryptSessionID: AES-ECB
// with trailing padding, as the device produces it.
func encryptToken(t *testing.T, key []byte, plaintext string) []byte {
	t.Helper()

	block, err := aes.NewCipher(key)
	require.NoError(t, err)

	pad := aes.BlockSize - len(plaintext)%aes.BlockSize
	padded := []byte(plaintext)
	for i := 0; i < pad; i++ {
		padded = append(padded, byte(pad))
	}

	out := make([]byte, len(padded))
	for off := 0; off < len(padded); off += aes.BlockSize {
		block.Encrypt(out[off:off+aes.BlockSize], padded[off:off+aes.BlockSize])
	}
	return out
}

// openSessionNode builds an OpenSession response whose token decrypts to
// sessionID under the given password.
func openSessionNode(t *testing.T, password, sessionID string) *wire.Node {
	t.Helper()

	salt := []byte("0123456789abcdef")
	token := encryptToken(t, DeriveKey(password, salt), sessionID)

	return successNode(t,
		"<SessionId>"+base64.StdEncoding.EncodeToString(token)+"</SessionId>"+
			"<Salt>"+base64.StdEncoding.EncodeToString(salt)+"</Salt>")
}

// fastDosing keeps protocol waits in the microsecond range so polling
// tests finish quickly.
var fastDosing = DosingConfig{
	PollInterval:        time.Millisecond,
	NotificationTimeout: time.Millisecond,
	DoseTimeout:         250 * time.Millisecond,
	SettleDelay:         time.Millisecond,
	RetryDelay:          time.Millisecond,
}

func newTestClient(t *testing.T, inv *fakeInvoker, password string) *Client {
	t.Helper()
	inv.respond("OpenSession", openSessionNode(t, password, "session-1"))
	return NewClient(inv, Config{Password: password, Dosing: fastDosing}, nil, nil)
}

// findArg walks nested argument lists by name.
func findArg(args []wire.Arg, path ...string) (wire.Arg, bool) {
	if len(path) == 0 {
		return wire.Arg{}, false
	}
	for _, a := range args {
		if a.Name != path[0] {
			continue
		}
		if len(path) == 1 {
			return a, true
		}
		kids, ok := a.Value.([]wire.Arg)
		if !ok {
			return wire.Arg{}, false
		}
		return findArg(kids, path[1:]...)
	}
	return wire.Arg{}, false
}
