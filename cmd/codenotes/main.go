package main

import (
	"fmt"
	"os"

	"github.com/MarcoPoloResearchLab/codenotes/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// cli carries the state shared by every subcommand of one invocation.
type cli struct {
	viper   *viper.Viper
	cfgFile string
}

func newRootCommand() *cobra.Command {
	state := &cli{viper: config.NewViper()}

	rootCmd := &cobra.Command{
		Use:          "codenotes",
		Short:        "Code Notes keeps text and code snippets in a local store",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return state.initConfig()
		},
	}

	state.setupFlags(rootCmd)

	rootCmd.AddCommand(
		state.newListCommand(),
		state.newShowCommand(),
		state.newCreateCommand(),
		state.newEditCommand(),
		state.newRemoveCommand(),
		state.newExportCommand(),
		state.newImportCommand(),
		state.newLanguagesCommand(),
		state.newServeCommand(),
	)
	return rootCmd
}

func (c *cli) setupFlags(cmd *cobra.Command) {
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&c.cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("storage-driver", defaults.GetString("storage.driver"), "Storage driver (sqlite, file, memory)")
	cmd.PersistentFlags().String("storage-path", defaults.GetString("storage.path"), "SQLite database file or directory for the file driver")
	cmd.PersistentFlags().String("storage-key", defaults.GetString("storage.key"), "Key the note collection is stored under")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", defaults.GetString("log.format"), "Log format (console, json)")
	cmd.PersistentFlags().String("app-name", defaults.GetString("app.name"), "Application name used in export file names")

	c.bindFlag(cmd, "storage.driver", "storage-driver")
	c.bindFlag(cmd, "storage.path", "storage-path")
	c.bindFlag(cmd, "storage.key", "storage-key")
	c.bindFlag(cmd, "log.level", "log-level")
	c.bindFlag(cmd, "log.format", "log-format")
	c.bindFlag(cmd, "app.name", "app-name")
}

func (c *cli) bindFlag(cmd *cobra.Command, key, flag string) {
	if err := c.viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func (c *cli) bindLocalFlag(cmd *cobra.Command, key, flag string) {
	if err := c.viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func (c *cli) initConfig() error {
	if c.cfgFile == "" {
		return nil
	}
	c.viper.SetConfigFile(c.cfgFile)
	if err := c.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", c.cfgFile, err)
	}
	return nil
}
