package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:           "stagelog",
	Short:         "A personal theater journal",
	Long:          "stagelog keeps track of the shows you have seen and the tickets you hold.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if os.Getenv("NO_COLOR") != "" {
			noColor = true
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(startCmd, stopCmd, statusCmd)
	rootCmd.AddCommand(addCmd, editCmd, rmCmd, clearCmd, showCmd, listCmd, searchCmd)
	rootCmd.AddCommand(statsCmd, badgesCmd, calendarCmd, summaryCmd)
	rootCmd.AddCommand(parseCmd, venuesCmd, exportCmd, backupCmd, mirrorCmd)
	rootCmd.AddCommand(settingsCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}

