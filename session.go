package rndc

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Role distinguishes which half of the four-packet exchange a Session
// drives. The two roles are mutually exclusive; rather than carry an
// ambiguous flag, this package exposes two constructors
// (NewClientSession, NewServerSession) that each fix the role for the
// life of the Session.
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

func (r Role) String() string {
	if r == RoleServer {
		return "server"
	}
	return "client"
}

// State is one node of the Session state machine.
type State int

const (
	StateStart State = iota
	StateWantRead
	StateWantWrite
	StateWantFinish
	StateWantError
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateWantRead:
		return "want_read"
	case StateWantWrite:
		return "want_write"
	case StateWantFinish:
		return "want_finish"
	case StateWantError:
		return "want_error"
	default:
		return "unknown"
	}
}

// DispatchFunc executes a received command on the server side and returns
// the text to send back, or an error to report instead.
type DispatchFunc func(command string) (text string, err error)

// Session drives one client-initiated four-packet RNDC exchange (open,
// nonce-reply, command, result) purely as a computation: it never touches
// a socket itself. The caller supplies WantRead/WantWrite/WantFinish/
// WantError callbacks and calls Start then Next repeatedly until a
// terminal state is reached.
type Session struct {
	role    Role
	key      string
	command  string
	dispatch DispatchFunc
	maxSkew  time.Duration // see Packet.MaxSkew; 0 disables expiry checking

	WantRead   func(s *Session)
	WantWrite  func(s *Session, data []byte, pkt *Packet)
	WantFinish func(s *Session, text string)
	WantError  func(s *Session, errText string)

	state State

	// client-only
	nonceSeen bool

	// server-only
	awaitingCommand   bool
	serverNonce       uint64
	pendingTermError  string
	haveTermError     bool
	awaitingFinish    bool
	pendingFinishText string
}

// NewClientSession creates a Session that will connect to a server as the
// client, sending command once the handshake nonce is exchanged.
func NewClientSession(key, command string) *Session {
	return &Session{role: RoleClient, key: key, command: command}
}

// NewServerSession creates a Session that will accept a single client
// exchange as the server, dispatching the received command through
// dispatch. This completes the server-side skeleton rather than
// rejecting the role outright at construction.
func NewServerSession(key string, dispatch DispatchFunc) *Session {
	return &Session{role: RoleServer, key: key, dispatch: dispatch}
}

// SetMaxSkew enables an optional expiry check on every packet this
// session parses: a received packet whose _exp is more than d in the
// past is rejected with ErrExpired. Zero (the default) disables it.
func (s *Session) SetMaxSkew(d time.Duration) {
	s.maxSkew = d
}

// Role reports which half of the exchange this Session drives.
func (s *Session) Role() Role { return s.role }

// State reports the current state.
func (s *Session) State() State { return s.state }

// Start begins the exchange. Calling Start on a Session that has already
// left StateStart is a programmer error and panics.
func (s *Session) Start() {
	if s.state != StateStart {
		panic(fmt.Sprintf("rndc: Session.Start called from state %v, not start", s.state))
	}

	if s.role == RoleServer {
		s.state = StateWantRead
		log.Debugf("[rndc] server session waiting for client open")
		s.invokeWantRead()
		return
	}

	pkt := NewPacket(s.key, nil, nil)
	s.transitionToWrite(pkt, "client open")
}

// Next advances the state machine. Its meaning depends on the current
// state: from want_write it means "the bytes were sent, proceed"; from
// want_read, data is the bytes just received. Calling Next from a
// terminal state (want_finish, want_error) is a programmer error and
// panics: terminal states are sinks.
func (s *Session) Next(data []byte) {
	switch s.state {
	case StateWantFinish, StateWantError:
		panic(fmt.Sprintf("rndc: Session.Next called from terminal state %v", s.state))
	case StateWantWrite:
		s.afterWrite()
	case StateWantRead:
		if s.role == RoleServer {
			s.serverNext(data)
		} else {
			s.clientNext(data)
		}
	default:
		panic(fmt.Sprintf("rndc: Session.Next called from state %v", s.state))
	}
}

func (s *Session) afterWrite() {
	if s.haveTermError {
		msg := s.pendingTermError
		s.haveTermError = false
		s.state = StateWantError
		log.Debugf("[rndc] %v session terminating with error after forced write: %v", s.role, msg)
		if s.WantError != nil {
			s.WantError(s, msg)
		}
		return
	}

	if s.awaitingFinish {
		text := s.pendingFinishText
		s.awaitingFinish = false
		s.state = StateWantFinish
		log.Debugf("[rndc] %v session finished", s.role)
		if s.WantFinish != nil {
			s.WantFinish(s, text)
		}
		return
	}

	s.state = StateWantRead
	log.Debugf("[rndc] %v session waiting to read", s.role)
	s.invokeWantRead()
}

func (s *Session) invokeWantRead() {
	if s.WantRead != nil {
		s.WantRead(s)
	}
}

func (s *Session) transitionToWrite(pkt *Packet, what string) {
	data, err := pkt.ToBytes()
	if err != nil {
		s.fail(fmt.Sprintf("could not build %s packet: %v", what, err))
		return
	}
	s.state = StateWantWrite
	log.Debugf("[rndc] %v session sending %s (%d bytes)", s.role, what, len(data))
	if s.WantWrite != nil {
		s.WantWrite(s, data, pkt)
	}
}

// fail transitions straight to want_error without writing anything
// first. The client role uses it for every failure; the server role uses
// it only when a packet (including its error packet) cannot be built.
func (s *Session) fail(errText string) {
	s.state = StateWantError
	log.Debugf("[rndc] %v session failing: %v", s.role, errText)
	if s.WantError != nil {
		s.WantError(s, errText)
	}
}

// failAfterWrite fabricates an error Packet, forces a want_write with it,
// and only transitions to want_error once that write's Next() arrives
// -- mirroring how a server implementation flushes a diagnostic before
// hanging up rather than dropping the connection silently.
func (s *Session) failAfterWrite(nonce *uint64, errText string) {
	pkt := NewPacket(s.key, map[string]string{"err": errText}, nonce)
	data, err := pkt.ToBytes()
	if err != nil {
		// Can't even build the error packet -- nothing left to flush.
		s.fail(fmt.Sprintf("%v (additionally failed to build error packet: %v)", errText, err))
		return
	}
	s.haveTermError = true
	s.pendingTermError = errText
	s.state = StateWantWrite
	log.Debugf("[rndc] %v session sending fabricated error packet: %v", s.role, errText)
	if s.WantWrite != nil {
		s.WantWrite(s, data, pkt)
	}
}

// --- client transitions ---

func (s *Session) clientNext(data []byte) {
	pkt := &Packet{Key: s.key, MaxSkew: s.maxSkew}
	if err := pkt.Parse(data); err != nil {
		s.fail(pkt.Error())
		return
	}

	if !s.nonceSeen {
		s.nonceSeen = true
		nonce, _ := pkt.NonceValue()
		cmdPkt := NewPacket(s.key, map[string]string{"type": s.command}, &nonce)
		s.transitionToWrite(cmdPkt, "command")
		return
	}

	text := pkt.Text()
	if text == "" {
		text = "command success"
	}
	s.state = StateWantFinish
	log.Debugf("[rndc] client session finished")
	if s.WantFinish != nil {
		s.WantFinish(s, text)
	}
}

// --- server transitions ---

func (s *Session) serverNext(data []byte) {
	if !s.awaitingCommand {
		s.serverHandleOpen(data)
		return
	}
	s.serverHandleCommand(data)
}

func (s *Session) serverHandleOpen(data []byte) {
	pkt := &Packet{Key: s.key, MaxSkew: s.maxSkew}
	if err := pkt.Parse(data); err != nil {
		s.failAfterWrite(nil, pkt.Error())
		return
	}

	nonce, err := newNonce()
	if err != nil {
		s.failAfterWrite(nil, fmt.Sprintf("could not generate nonce: %v", err))
		return
	}
	s.serverNonce = nonce
	s.awaitingCommand = true

	reply := NewPacket(s.key, nil, &nonce)
	s.transitionToWrite(reply, "server nonce reply")
}

func (s *Session) serverHandleCommand(data []byte) {
	pkt := &Packet{Key: s.key, MaxSkew: s.maxSkew}
	if err := pkt.Parse(data); err != nil {
		s.failAfterWrite(&s.serverNonce, pkt.Error())
		return
	}

	if nonce, ok := pkt.NonceValue(); !ok || nonce != s.serverNonce {
		s.failAfterWrite(&s.serverNonce, "nonce mismatch")
		return
	}

	command := pkt.Type()

	if s.dispatch == nil {
		s.failAfterWrite(&s.serverNonce, "no dispatcher configured for this server session")
		return
	}

	text, err := s.dispatch(command)
	if err != nil {
		s.failAfterWrite(&s.serverNonce, err.Error())
		return
	}

	result := NewPacket(s.key, map[string]string{"text": text}, &s.serverNonce)
	s.awaitingFinish = true
	s.pendingFinishText = text
	s.transitionToWrite(result, "server result")
}

// newNonce generates a random, non-zero 32-bit nonce, matching the
// wire's ASCII-decimal _ctrl._nonce field width.
func newNonce() (uint64, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	n := uint64(binary.BigEndian.Uint32(b[:]))
	if n == 0 {
		n = 1
	}
	return n, nil
}
