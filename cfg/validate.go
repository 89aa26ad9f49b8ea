package cfg

import "fmt"

func isValidDialect(d string) bool {
	return d == "postgres" || d == "sqlite"
}

func isValidLogFormat(f string) bool {
	return f == "text" || f == "json"
}

func isValidSeverity(s string) bool {
	switch s {
	case "TRACE", "DEBUG", "INFO", "WARNING", "ERROR":
		return true
	default:
		return false
	}
}

// ValidateConfig returns a non-nil error if config is unfit to start
// the server with, mirroring cfg/validate.go's ValidateConfig shape.
func ValidateConfig(config *Config) error {
	if !isValidDialect(config.Database.Dialect) {
		return fmt.Errorf("database.dialect must be \"postgres\" or \"sqlite\", got %q", config.Database.Dialect)
	}
	if config.Database.DSN == "" {
		return fmt.Errorf("database.dsn must not be empty")
	}
	if config.FileSystem.SymlinkHopLimit <= 0 {
		return fmt.Errorf("file-system.symlink-hop-limit must be positive, got %d", config.FileSystem.SymlinkHopLimit)
	}
	if !isValidLogFormat(config.Logging.Format) {
		return fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", config.Logging.Format)
	}
	if !isValidSeverity(config.Logging.Severity) {
		return fmt.Errorf("logging.severity must be one of TRACE, DEBUG, INFO, WARNING, ERROR, got %q", config.Logging.Severity)
	}
	return nil
}
