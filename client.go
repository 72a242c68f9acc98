package rndc

import (
	"encoding/binary"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/dnscontrol/rndc/internal/util"
)

// DefaultPort is the TCP port rndc.conf and named agree on absent an
// explicit override.
const DefaultPort = 953

// Socket is the minimal transport a Client drives the four-packet
// exchange over. It exists so Client can be exercised against anything
// that can move framed bytes -- a real TCP connection in production, an
// in-memory pipe in tests.
type Socket interface {
	// Send writes one full frame.
	Send(data []byte) error
	// Recv reads one full frame, exactly as most recently written by the
	// peer's Send.
	Recv() ([]byte, error)
	Close() error
}

// TCPSocket is the default Socket: a length-prefixed frame read/written
// directly over a net.Conn, matching the on-wire framing of the RNDC
// control channel.
type TCPSocket struct {
	conn net.Conn
}

// DialTCP connects to host:port (port defaults to DefaultPort if zero)
// and wraps the connection as a Socket.
func DialTCP(host string, port int, timeout time.Duration) (*TCPSocket, error) {
	if port == 0 {
		port = DefaultPort
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, errors.Wrapf(err, "rndc: could not connect to %s", addr)
	}
	return &TCPSocket{conn: conn}, nil
}

func (t *TCPSocket) Send(data []byte) error {
	_, err := t.conn.Write(data)
	return errors.WithStack(err)
}

// Recv reads one frame: the 4-byte big-endian length prefix, then exactly
// that many bytes. Every real reply is a small control message, so a
// frame longer than 64KiB is rejected.
func (t *TCPSocket) Recv() ([]byte, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(t.conn, header); err != nil {
		return nil, errors.WithStack(err)
	}
	n := binary.BigEndian.Uint32(header)
	if n > 65536-4 {
		return nil, errors.Errorf("rndc: frame length %d exceeds 64KiB", n)
	}
	buf := make([]byte, 4+int(n))
	copy(buf, header)
	if _, err := io.ReadFull(t.conn, buf[4:]); err != nil {
		return nil, errors.WithStack(err)
	}
	return buf, nil
}

func (t *TCPSocket) Close() error {
	return errors.WithStack(t.conn.Close())
}

// Client is the synchronous façade over Session for callers who just
// want to run one command and get a result back, without driving the
// want_read/want_write callbacks by hand. Session alone is sufficient to
// speak the protocol, but every real consumer wants exactly this shape.
type Client struct {
	Key     string
	Host    string
	Port    int
	Timeout time.Duration
	MaxSkew time.Duration

	// NewSocket overrides how Do connects; nil means DialTCP. Tests set
	// this to drive the exchange over an in-memory pipe.
	NewSocket func(host string, port int, timeout time.Duration) (Socket, error)

	response string
	errText  string
}

// Do runs one full client exchange for command and reports whether it
// completed successfully. Response/Error return the result either way.
//
// A missing Key or Host is a programmer error, not a protocol failure --
// Do aborts the process immediately rather than attempting a connection
// that can never succeed.
func (c *Client) Do(command string) bool {
	util.MustNonEmpty("key", c.Key)
	util.MustNonEmpty("host", c.Host)

	c.response = ""
	c.errText = ""

	sock, err := c.connect()
	if err != nil {
		c.errText = err.Error()
		return false
	}
	defer func() {
		cerr := sock.Close()
		if cerr == nil {
			return
		}
		if c.errText == "" {
			c.errText = cerr.Error()
			return
		}
		// The exchange already failed; fold the close error in rather than
		// dropping it, so the caller sees both.
		var errs *multierror.Error
		errs = multierror.Append(errs, errors.New(c.errText), cerr)
		c.errText = errs.Error()
	}()

	sess := NewClientSession(c.Key, command)
	sess.SetMaxSkew(c.MaxSkew)

	log.Debugf("[rndc] sending command %q to %s:%d", command, c.Host, c.Port)

	done := make(chan struct{})
	sess.WantWrite = func(s *Session, data []byte, pkt *Packet) {
		if log.IsLevelEnabled(log.TraceLevel) {
			log.Tracef("[rndc] outbound packet: %s", spew.Sdump(pkt))
		}
		if err := sock.Send(data); err != nil {
			c.errText = err.Error()
			close(done)
			return
		}
		s.Next(nil)
	}
	sess.WantRead = func(s *Session) {
		data, err := sock.Recv()
		if err != nil {
			c.errText = err.Error()
			close(done)
			return
		}
		s.Next(data)
	}
	sess.WantFinish = func(s *Session, text string) {
		c.response = text
		close(done)
	}
	sess.WantError = func(s *Session, errText string) {
		c.errText = errText
		close(done)
	}

	sess.Start()
	<-done

	return c.errText == ""
}

func (c *Client) connect() (Socket, error) {
	if c.NewSocket != nil {
		return c.NewSocket(c.Host, c.Port, c.Timeout)
	}
	return DialTCP(c.Host, c.Port, c.Timeout)
}

// Response returns the text of the most recent successful Do call.
func (c *Client) Response() string { return c.response }

// Error returns the text of the most recent failed Do call, or "" if it
// succeeded.
func (c *Client) Error() string { return c.errText }
