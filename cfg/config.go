// Package cfg is a viper-backed Config struct with a BindFlags entry
// point cobra calls once at command construction, wiring each flag to
// a viper key and struct field rather than hand-rolled flag parsing.
package cfg

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the full runtime configuration of the pnfsd server.
type Config struct {
	Database DatabaseConfig `yaml:"database"`

	FileSystem FileSystemConfig `yaml:"file-system" mapstructure:"file-system"`

	Logging LoggingConfig `yaml:"logging"`

	Metrics MetricsConfig `yaml:"metrics"`
}

// DatabaseConfig selects the SQL dialect and connection string the
// namespace engine runs against.
type DatabaseConfig struct {
	Dialect string `yaml:"dialect"`
	DSN     string `yaml:"dsn"`
}

// FileSystemConfig carries the process-wide namespace-engine options:
// whether newly created inodes have I/O enabled by default, and how
// many symlink hops path resolution follows before giving up.
type FileSystemConfig struct {
	DefaultIOEnabled bool `yaml:"default-io-enabled" mapstructure:"default-io-enabled"`
	SymlinkHopLimit  int  `yaml:"symlink-hop-limit" mapstructure:"symlink-hop-limit"`
}

// LoggingConfig selects the nslog handler format and minimum severity.
type LoggingConfig struct {
	Format   string `yaml:"format"`
	Severity string `yaml:"severity"`
}

// MetricsConfig configures the Prometheus HTTP listener.
type MetricsConfig struct {
	ListenAddr string `yaml:"listen-addr" mapstructure:"listen-addr"`
}

// BindFlags registers every flag flagSet accepts and binds each one to
// its viper key.
func BindFlags(flagSet *pflag.FlagSet) error {
	var err error

	flagSet.StringP("dialect", "", "sqlite", "SQL dialect: postgres or sqlite.")
	if err = viper.BindPFlag("database.dialect", flagSet.Lookup("dialect")); err != nil {
		return err
	}

	flagSet.StringP("dsn", "", "pnfsd.db", "Data source name / connection string for the dialect above.")
	if err = viper.BindPFlag("database.dsn", flagSet.Lookup("dsn")); err != nil {
		return err
	}

	flagSet.BoolP("default-io-enabled", "", true, "Whether newly created inodes have I/O enabled by default.")
	if err = viper.BindPFlag("file-system.default-io-enabled", flagSet.Lookup("default-io-enabled")); err != nil {
		return err
	}

	flagSet.IntP("symlink-hop-limit", "", 40, "Maximum symlink hops path2inode follows before failing.")
	if err = viper.BindPFlag("file-system.symlink-hop-limit", flagSet.Lookup("symlink-hop-limit")); err != nil {
		return err
	}

	flagSet.StringP("log-format", "", "text", "Log handler: text or json.")
	if err = viper.BindPFlag("logging.format", flagSet.Lookup("log-format")); err != nil {
		return err
	}

	flagSet.StringP("log-severity", "", "INFO", "Minimum log severity: TRACE, DEBUG, INFO, WARNING, or ERROR.")
	if err = viper.BindPFlag("logging.severity", flagSet.Lookup("log-severity")); err != nil {
		return err
	}

	flagSet.StringP("metrics-listen-addr", "", ":9090", "Address the Prometheus metrics endpoint listens on.")
	if err = viper.BindPFlag("metrics.listen-addr", flagSet.Lookup("metrics-listen-addr")); err != nil {
		return err
	}

	return nil
}
