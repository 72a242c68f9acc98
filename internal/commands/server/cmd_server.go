// Package server implements the `rndc server` stub subcommand.
//
// rndc.Session fully implements the server half of the four-packet
// exchange (open, nonce-reply, command, result) -- see the package-level
// Session tests for that. What this command does not attempt is being
// named itself: actually dispatching a received command ("reload",
// "stop", "status", ...) to a running server is out of scope for a
// control-channel client library, so this subcommand exists only to
// give operators an explicit, actionable error instead of silence.
package server

import (
	"github.com/dnscontrol/rndc/internal/logging"
	"github.com/pkg/errors"
)

// Command is the `server` subcommand.
type Command struct {
}

func NewCommand() *Command {
	return &Command{}
}

func (s *Command) Execute(args []string) error {
	logging.SetupLogging()
	return errors.New("rndc: server role is not supported by this command; " +
		"the rndc.Session state machine implements it for embedders, see rndc.NewServerSession")
}
