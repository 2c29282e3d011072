package main

import (
	"github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile    string
	flagVerbose bool
	flagJSON    bool
)

const configFileName = "isoforge"

var rootCmd = &cobra.Command{
	Use:   "isoforge",
	Short: "Produce ECMA-119/Joliet/ISO 9660:1999/HFS+ disc images from a directory tree",
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.isoforge.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug-level logging")
	rootCmd.PersistentFlags().BoolVarP(&flagJSON, "json", "j", false, "emit logs as JSON instead of text")

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if flagJSON {
			logrus.SetFormatter(&logrus.JSONFormatter{})
		}
		if flagVerbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
	}
}

// initConfig loads an optional YAML/TOML/JSON config file the way the
// teacher's sibling vconvert.initConfig layers viper under cobra: an
// explicit --config path takes precedence, otherwise $HOME/.isoforge.*
// is probed and silently skipped if absent (there is nothing to read
// in the common no-config-file case, only flags).
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigName("." + configFileName)
		}
	}
	viper.SetEnvPrefix("ISOFORGE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		logrus.WithField("file", viper.ConfigFileUsed()).Debug("loaded config file")
	}
}

// Execute runs the root command, returning any error cobra surfaces so
// main can translate it into a process exit code.
func Execute() error {
	return rootCmd.Execute()
}
