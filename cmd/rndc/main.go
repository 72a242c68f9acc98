package main

import (
	"fmt"
	"os"
	"path"

	"github.com/dnscontrol/rndc/internal/args"
	"github.com/dnscontrol/rndc/internal/commands/docommand"
	"github.com/dnscontrol/rndc/internal/commands/server"
	"github.com/dnscontrol/rndc/internal/commands/version"
	scFlags "github.com/dnscontrol/rndc/internal/flags"
	"github.com/dnscontrol/rndc/internal/util"
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

const (
	// ErrConfigFileDoesNotExist is raised when the configuration file
	// cannot be found.
	ErrConfigFileDoesNotExist = flags.ErrInvalidTag + 1
)

// Rndc is the main executable: send a command to named by default, or
// run one of the version/server subcommands.
type Rndc struct {
	parser *flags.Parser
}

// NewRndc creates a new instance and wires up every option group and
// subcommand.
func NewRndc() *Rndc {
	executableFilename := os.Args[0]
	executablePath := path.Base(executableFilename)

	r := &Rndc{
		parser: flags.NewParser(&args.Do, flags.HelpFlag|flags.PrintErrors),
	}
	r.parser.Name = executablePath

	r.setupGeneral()
	r.setupVersion()
	r.setupServer()

	return r
}

// setupGeneral configures the shared logging/config options.
func (r *Rndc) setupGeneral() {
	if _, err := r.parser.AddGroup("General", "General options", &args.General); err != nil {
		util.MustErrorNilOrExit(errors.WithStack(err))
	}
}

// setupVersion adds the `version` command.
func (r *Rndc) setupVersion() {
	cmd := &version.Command{}
	_, err := r.parser.AddCommand(
		"version",
		"Print the version",
		"Print the application version and exit",
		cmd,
	)
	util.MustErrorNilOrExit(err)
}

// setupServer adds the `server` command.
func (r *Rndc) setupServer() {
	cmd := server.NewCommand()
	_, err := r.parser.AddCommand(
		"server",
		"Server role (not supported)",
		"Always exits with an error; the server role is available to embedders as rndc.NewServerSession",
		cmd,
	)
	util.MustErrorNilOrExit(err)
}

func main() {
	rndc := NewRndc()

	args.General.ConfigurationFile = func(file string) error {
		if _, err := os.Stat(file); os.IsNotExist(err) {
			message := fmt.Sprintf("Configuration file %s does not exist.", file)
			util.MustErrorNilOrExit(&flags.Error{
				Type:    ErrConfigFileDoesNotExist,
				Message: message,
			})
		}

		yamlParser := scFlags.NewYamlParser(rndc.parser)

		args.General.ConfigurationFilePath = file
		return yamlParser.ParseFile(file)
	}

	if _, err := rndc.parser.Parse(); err != nil {
		util.MustErrorNilOrExit(err)
	}

	if rndc.parser.Active == nil {
		util.MustErrorNilOrExit(docommand.Run())
	}
}
