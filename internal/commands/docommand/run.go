// Package docommand implements rndc's default behavior: send one
// command to a running named and print its reply. Unlike version and
// server, this isn't wired in as a go-flags subcommand -- it runs
// whenever the user doesn't pick a subcommand, exactly like the real
// rndc binary, where `rndc status` and `rndc reload` are not "rndc do
// status"/"rndc do reload".
package docommand

import (
	"fmt"
	"strings"
	"time"

	"github.com/dnscontrol/rndc"
	"github.com/dnscontrol/rndc/internal/args"
	"github.com/dnscontrol/rndc/internal/keyfile"
	"github.com/dnscontrol/rndc/internal/logging"
	"github.com/dnscontrol/rndc/internal/util"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Run resolves the key material, builds a rndc.Client from args.Do, and
// executes the requested command (default: "status"), matching the
// original rndc's argument conventions.
func Run() error {
	logging.SetupLogging()

	key, err := resolveKey()
	if err != nil {
		return err
	}

	command := "status"
	if len(args.Do.Args.Command) > 0 {
		command = strings.Join(args.Do.Args.Command, " ")
	}
	util.MustNonEmpty("command", command)

	client := &rndc.Client{
		Key:     key,
		Host:    args.Do.Server,
		Port:    args.Do.Port,
		Timeout: time.Duration(args.Do.Timeout) * time.Second,
	}

	log.Debugf("[rndc] sending %q to %s:%d", command, client.Host, client.Port)

	if !client.Do(command) {
		return errors.Errorf("rndc: %s", client.Error())
	}

	if resp := client.Response(); resp != "" {
		fmt.Println(resp)
	}
	return nil
}

// resolveKey returns the base64 HMAC key material: args.Do.Key directly
// if set, otherwise looked up by name from args.Do.KeyFile.
func resolveKey() (string, error) {
	if args.Do.Key != "" {
		return args.Do.Key, nil
	}
	k, err := keyfile.ReadNamedKey(args.Do.KeyFile, args.Do.KeyName)
	if err != nil {
		return "", errors.WithStack(err)
	}
	return k.Secret, nil
}
