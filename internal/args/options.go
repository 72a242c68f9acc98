package args

// CallbackOption is a go-flags option whose value is delivered through a
// callback instead of stored directly, used here for -c/--config so the
// parser can eagerly load and apply the file the moment it's seen.
type CallbackOption func(string) error

// General holds every option shared by every rndc subcommand -- logging
// and configuration-file handling.
var General struct {
	Verbose               []bool         `short:"v" long:"verbose"             env:"VERBOSITY"          description:"Show verbose debug information"`
	ConfigurationFile     CallbackOption `short:"c" long:"config"              env:"CONFIG"             description:"Configuration file (yaml-formatted, one top-level section per subcommand)" no-ini:"true"`
	ConfigurationFilePath string
	LogFile               *string `short:"l" long:"log-file"            env:"LOG_FILE"           description:"Log file (file will be appended). If not set, defaults to stderr." default:"-"`
	LogFormat             string  `short:"f" long:"log-format"          env:"LOG_FORMAT"         description:"Log file format (json or text)." choice:"text" choice:"json" default:"text"`
	LogColor              string  `short:"C" long:"log-color"           env:"LOG_COLOR"          description:"Should the log output be colored? true, false or auto" choice:"yes" choice:"no" choice:"true" choice:"false" choice:"auto" default:"auto"`
	LogFullTimestamp      bool    `          long:"log-full-timestamp"  env:"LOG_FULL_TIMESTAMP" description:"Display full timestamp in logs."`
	LogReportCaller       bool    `          long:"log-report-caller"   env:"LOG_REPORT_CALLER"  description:"If you wish to add the calling method as a field."`
}

// Do holds the options for the default (command-sending) rndc behavior:
// where to connect, which key to sign with, and what to run.
var Do struct {
	Server  string `short:"s" long:"server"       env:"RNDC_SERVER"      description:"named server to control" default:"127.0.0.1"`
	Port    int    `short:"p" long:"port"         env:"RNDC_PORT"        description:"named control port" default:"953"`
	KeyFile string `short:"k" long:"key-file"     env:"RNDC_KEYFILE"     description:"key file (rndc.key-style) to read the HMAC key from" default:"/etc/rndc.key"`
	KeyName string `short:"y" long:"key"          env:"RNDC_KEY"         description:"key name to use from the key file, if it contains more than one"`
	Key     string `          long:"key-secret"   env:"RNDC_KEY_SECRET"  description:"base64-encoded HMAC-MD5 key material, overriding -k/-y entirely"`
	Timeout int    `          long:"timeout"      env:"RNDC_TIMEOUT"     description:"connection timeout, in seconds" default:"10"`

	Args struct {
		Command []string `positional-arg-name:"command" description:"command to send named (default: status)"`
	} `positional-args:"true"`
}
