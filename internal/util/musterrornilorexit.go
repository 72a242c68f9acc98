package util

import (
	"os"

	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"
)

const (
	ErrGeneric = 99
	// ErrMissingArgument is used by MustNonEmpty for the "required
	// argument not supplied" class of fatal, unrecoverable startup error.
	ErrMissingArgument = 100
)

// MustErrorNilOrExit will check the provided argument. If it's `nil` it will simply return. If it's
// not `nil`, it will log the rrror as `log.FatalLevel` and exit immediately with provided error code.
// Error code is unwrapped from `flags.Error` object. If it's a different kind of error, a generic
// error code - 99 - is returned
func MustErrorNilOrExit(err error) {
	if err == nil {
		return
	}

	if flagsError, ok := err.(*flags.Error); ok {
		if flagsError.Type == flags.ErrHelp {
			os.Exit(0)
		}

		log.StandardLogger().WithError(err).Logf(log.FatalLevel, "Error: %+v", err)
		log.Exit(int(flagsError.Type))
	} else {
		log.StandardLogger().WithError(err).Logf(log.FatalLevel, "Error: %+v", err)
		log.Exit(ErrGeneric)
	}

}

// MustNonEmpty exits the process with ErrMissingArgument if value is
// empty. It exists for the handful of arguments (the key material, the
// server address) that go-flags cannot itself enforce because they may
// be supplied indirectly through a key file rather than a flag, and for
// the same checks on rndc.Client, which has no flag parser behind it at
// all.
func MustNonEmpty(flagName, value string) {
	if value != "" {
		return
	}
	log.StandardLogger().Logf(log.FatalLevel, "Missing required argument '%s'", flagName)
	log.Exit(ErrMissingArgument)
}
