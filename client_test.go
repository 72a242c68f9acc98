package rndc

import (
	"os"
	"sync"
	"testing"
	"time"

	"bou.ke/monkey"
	"github.com/stretchr/testify/require"

	"github.com/dnscontrol/rndc/internal/util"
)

// exitMutex serializes the tests in this file that monkey-patch os.Exit,
// the same way internal/util/musterrornilorexit_test.go does.
var exitMutex sync.Mutex

// fakeServerSocket is a Socket whose other end is a real server Session
// driven in-process, so Client.Do can be exercised end to end without a
// TCP connection.
type fakeServerSocket struct {
	server   *Session
	outbox   chan []byte
	closeErr error
}

func newFakeServerSocket(serverKey string, dispatch DispatchFunc) *fakeServerSocket {
	f := &fakeServerSocket{outbox: make(chan []byte, 4)}
	f.server = NewServerSession(serverKey, dispatch)
	f.server.WantWrite = func(s *Session, data []byte, pkt *Packet) {
		f.outbox <- data
		s.Next(nil)
	}
	f.server.WantRead = func(s *Session) {}
	f.server.Start()
	return f
}

func (f *fakeServerSocket) Send(data []byte) error {
	f.server.Next(data)
	return nil
}

func (f *fakeServerSocket) Recv() ([]byte, error) {
	return <-f.outbox, nil
}

func (f *fakeServerSocket) Close() error { return f.closeErr }

func echoServerFactory(t *testing.T, serverKey string, dispatch DispatchFunc, gotHost *string, gotPort *int) func(host string, port int, timeout time.Duration) (Socket, error) {
	t.Helper()
	return func(host string, port int, timeout time.Duration) (Socket, error) {
		if gotHost != nil {
			*gotHost = host
		}
		if gotPort != nil {
			*gotPort = port
		}
		return newFakeServerSocket(serverKey, dispatch), nil
	}
}

// scenario 1: happy path status.
func TestClientDoHappyPathStatus(t *testing.T) {
	var gotHost string
	var gotPort int
	var seenCommand string

	client := &Client{
		Key:  testKey,
		Host: "127.0.0.1",
		Port: 953,
		NewSocket: echoServerFactory(t, testKey, func(command string) (string, error) {
			seenCommand = command
			return "birdy", nil
		}, &gotHost, &gotPort),
	}

	ok := client.Do("status")

	require.True(t, ok)
	require.Equal(t, "birdy", client.Response())
	require.Equal(t, "", client.Error())
	require.Equal(t, "status", seenCommand)
	require.Equal(t, "127.0.0.1", gotHost)
	require.Equal(t, 953, gotPort)
}

// scenario 3: host override reaches the socket constructor unchanged.
func TestClientDoHostOverride(t *testing.T) {
	var gotHost string
	client := &Client{
		Key:  testKey,
		Host: "10.0.0.1",
		Port: 953,
		NewSocket: echoServerFactory(t, testKey, func(string) (string, error) {
			return "ok", nil
		}, &gotHost, nil),
	}

	require.True(t, client.Do("status"))
	require.Equal(t, "10.0.0.1", gotHost)
}

// scenario 4: port override reaches the socket constructor unchanged.
func TestClientDoPortOverride(t *testing.T) {
	var gotPort int
	client := &Client{
		Key:  testKey,
		Host: "127.0.0.1",
		Port: 5,
		NewSocket: echoServerFactory(t, testKey, func(string) (string, error) {
			return "ok", nil
		}, nil, &gotPort),
	}

	require.True(t, client.Do("status"))
	require.Equal(t, 5, gotPort)
}

// scenario 5: a server signing with a different key fails signature
// verification on the client's side, with no response text.
func TestClientDoWrongKeyFailsValidation(t *testing.T) {
	const serverKey = "YWJjZA==" // base64("abcd"), deliberately not testKey

	client := &Client{
		Key:  testKey,
		Host: "127.0.0.1",
		Port: 953,
		NewSocket: echoServerFactory(t, serverKey, func(string) (string, error) {
			return "should never be reached", nil
		}, nil, nil),
	}

	ok := client.Do("status")

	require.False(t, ok)
	require.Equal(t, "", client.Response())
	require.Contains(t, client.Error(), "Couldn't validate")
}

// scenario 6: do() with no key is a fatal programmer error, not a
// protocol failure. os.Exit is patched so the check can be observed
// without killing the test binary; a fake socket keeps the rest of Do
// (which still runs, since the patched exit doesn't actually stop
// execution) off the real network.
func TestClientDoMissingKeyIsFatal(t *testing.T) {
	exitMutex.Lock()
	defer exitMutex.Unlock()

	var exitCode int
	patch := monkey.Patch(os.Exit, func(code int) { exitCode = code })
	defer patch.Unpatch()

	client := &Client{
		Host: "127.0.0.1",
		Port: 953,
		NewSocket: echoServerFactory(t, testKey, func(string) (string, error) {
			return "ok", nil
		}, nil, nil),
	}
	client.Do("status")

	require.Equal(t, util.ErrMissingArgument, exitCode)
}

// scenario 6: do() with a key but no host is equally fatal.
func TestClientDoMissingHostIsFatal(t *testing.T) {
	exitMutex.Lock()
	defer exitMutex.Unlock()

	var exitCode int
	patch := monkey.Patch(os.Exit, func(code int) { exitCode = code })
	defer patch.Unpatch()

	client := &Client{
		Key:  testKey,
		Port: 953,
		NewSocket: echoServerFactory(t, testKey, func(string) (string, error) {
			return "ok", nil
		}, nil, nil),
	}
	client.Do("status")

	require.Equal(t, util.ErrMissingArgument, exitCode)
}
