package cli

import (
	"github.com/mwantia/fsindex/config"
	"github.com/mwantia/fsindex/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RootOptions holds the flags shared by every command.
type RootOptions struct {
	ConfigFile string

	Directory        string
	Store            string
	Database         string
	DatabaseUser     string
	DatabasePassword string
	DatabaseURL      string
	DatabasePort     int
	DatabaseTable    string
	DatabaseSchema   string

	LogLevel   string
	LogFile    string
	LogJSON    bool
	NoColor    bool
	NoTerminal bool
}

func (o *RootOptions) addFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&o.ConfigFile, "config", "c", "", "path to a YAML config file")

	flags.StringVarP(&o.Directory, "directory", "r", "", "directory to index")
	flags.StringVar(&o.Store, "store", "", "store address (postgres://, sqlite://, consul://, memory://)")
	flags.StringVarP(&o.Database, "database", "d", "", "database name")
	flags.StringVarP(&o.DatabaseUser, "database-user", "u", "", "database user")
	flags.StringVarP(&o.DatabasePassword, "database-password", "p", "", "database password")
	flags.StringVarP(&o.DatabaseURL, "database-url", "l", "", "database host")
	flags.IntVarP(&o.DatabasePort, "database-port", "o", 0, "database port")
	flags.StringVarP(&o.DatabaseTable, "database-table", "t", "", "database table")
	flags.StringVarP(&o.DatabaseSchema, "database-schema", "s", "", "database schema")

	flags.StringVar(&o.LogLevel, "log-level", "", "log level (debug|info|warn|error)")
	flags.StringVar(&o.LogFile, "log-file", "", "write logs to a rotated file")
	flags.BoolVar(&o.LogJSON, "log-json", false, "write logs as JSON lines")
	flags.BoolVar(&o.NoColor, "no-color", false, "disable coloured log output")
	flags.BoolVar(&o.NoTerminal, "no-terminal", false, "do not log to stdout when a log file is set")
}

// resolve loads the config file and applies every flag set explicitly on
// the command line on top of it.
func (o *RootOptions) resolve(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(o.ConfigFile)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	override := func(name string, apply func()) {
		if changed(name) {
			apply()
		}
	}

	override("directory", func() { cfg.Root = o.Directory })
	override("store", func() { cfg.Store.Address = o.Store })
	override("database", func() { cfg.Store.Database = o.Database })
	override("database-user", func() { cfg.Store.User = o.DatabaseUser })
	override("database-password", func() { cfg.Store.Password = o.DatabasePassword })
	override("database-url", func() { cfg.Store.Host = o.DatabaseURL })
	override("database-port", func() { cfg.Store.Port = o.DatabasePort })
	override("database-table", func() { cfg.Store.Table = o.DatabaseTable })
	override("database-schema", func() { cfg.Store.Schema = o.DatabaseSchema })

	override("log-level", func() { cfg.Log.Level = o.LogLevel })
	override("log-file", func() { cfg.Log.File = o.LogFile })
	override("log-json", func() { cfg.Log.JSON = o.LogJSON })
	override("no-color", func() { cfg.Log.NoColor = o.NoColor })
	override("no-terminal", func() { cfg.Log.NoTerminal = o.NoTerminal })

	return cfg, nil
}

func newLogger(cfg config.LogConfig) (*log.Logger, error) {
	level, err := log.Parse(cfg.Level)
	if err != nil {
		return nil, err
	}

	logger := log.NewLogger("fsindex", level, cfg.File, cfg.NoTerminal)
	logger.JSON = cfg.JSON
	logger.NoColor = cfg.NoColor

	return logger, nil
}
