package cfg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		Database:   DatabaseConfig{Dialect: "sqlite", DSN: "pnfsd.db"},
		FileSystem: GetDefaultFileSystemConfig(),
		Logging:    GetDefaultLoggingConfig(),
	}
}

func TestValidateConfig(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(c *Config) {}, wantErr: false},
		{name: "unknown dialect", mutate: func(c *Config) { c.Database.Dialect = "mysql" }, wantErr: true},
		{name: "empty dsn", mutate: func(c *Config) { c.Database.DSN = "" }, wantErr: true},
		{name: "non-positive hop limit", mutate: func(c *Config) { c.FileSystem.SymlinkHopLimit = 0 }, wantErr: true},
		{name: "unknown log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: true},
		{name: "unknown severity", mutate: func(c *Config) { c.Logging.Severity = "VERBOSE" }, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := validConfig()
			tc.mutate(c)
			err := ValidateConfig(c)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
