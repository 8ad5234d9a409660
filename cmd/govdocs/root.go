package main

import (
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "govdocs",
	Short: "Ask questions about your government letters",
	Long: `govdocs stores analysed government letters in a vector database and
answers natural-language questions about them.

Questions are turned into sender, recipient and date filters by a language
model, the filtered store is searched by similarity, and the answer is
synthesised from the retrieved letters only.

Configuration is read from --config (YAML), a .env file in the working
directory and GOVDOCS_* environment variables, in that order.`,
	Version:       version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML configuration file")
}
