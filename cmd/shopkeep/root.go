// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopkeep Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/shopkeep/shopkeep/internal/config"
	"github.com/shopkeep/shopkeep/internal/xdg"
)

// Global flags available to all subcommands.
var (
	configFile string
	envFile    string
)

// NewRootCmd creates the root command for the Shopkeep CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shopkeep",
		Short: "Shopkeep - storefront account and authentication service",
		Long: `Shopkeep serves user registration, login with signed access tokens,
and password reset by emailed one-time codes for the storefront API.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (YAML, default $XDG_CONFIG_HOME/shopkeep/config.yaml)")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded into the environment if present")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}

// loadConfig resolves the configuration for cmd from every source.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path := configFile
	if path == "" {
		found, err := xdg.DefaultConfigFile()
		if err != nil {
			return config.Config{}, err
		}
		path = found
	}
	return config.Load(config.LoadOptions{
		ConfigFile: path,
		EnvFile:    envFile,
		Flags:      cmd.Flags(),
	})
}
