package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "uc3mcal",
	Short: "Exports published UC3M timetables as iCalendar files",
	Long: `uc3mcal fetches the published UC3M per-group lecture timetable and converts
it into a standards-compliant iCalendar (.ics) document, one recurring event
per scheduled class session.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Deployment configuration may live in a local .env file.
	godotenv.Load()
}
