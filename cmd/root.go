// Package cmd is the pnfsd CLI: a persistent --config-file flag,
// cfg.BindFlags wiring every other flag into viper, and a
// cobra.OnInitialize hook that unmarshals the merged flag/file/default
// view into a package-level Config once before any subcommand runs.
package cmd

import (
	"fmt"
	"os"

	"github.com/pnfsns/pnfsd/cfg"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile       string
	bindErr       error
	configFileErr error
	unmarshalErr  error

	// Config is the merged flag/file/default configuration, populated by
	// initConfig before any subcommand's RunE runs.
	Config cfg.Config
)

var rootCmd = &cobra.Command{
	Use:   "pnfsd",
	Short: "Run the pnfsd namespace engine server",
	Long: `pnfsd is the SQL-backed namespace engine server: a hierarchical,
POSIX-like metadata store for inodes, directory entries, hard and
symbolic links, access control lists, and replica location tracking.`,
}

// Execute runs the root command, exiting the process non-zero on
// error, matching cmd/root.go's Execute.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "Path to a YAML config file.")
	bindErr = cfg.BindFlags(rootCmd.PersistentFlags())
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		viper.SetConfigType("yaml")
		if err := viper.ReadInConfig(); err != nil {
			configFileErr = fmt.Errorf("reading config file: %w", err)
			return
		}
	}
	unmarshalErr = viper.Unmarshal(&Config)
}

func checkSetupErrors() error {
	if bindErr != nil {
		return bindErr
	}
	if configFileErr != nil {
		return configFileErr
	}
	if unmarshalErr != nil {
		return unmarshalErr
	}
	return nil
}
