package cmd

import (
	"log"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/uc3mcal/uc3mcal/server"
	"github.com/uc3mcal/uc3mcal/timetable"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the timetable export HTTP server",
	Long: `Starts an HTTP server with a single endpoint that accepts the six timetable
identifiers as query parameters and responds with the generated .ics document.`,
	Run: func(cmd *cobra.Command, args []string) {
		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = os.Getenv("UC3MCAL_ADDR")
		}
		if addr == "" {
			addr = ":8080"
		}

		logger, err := zap.NewProduction()
		if err != nil {
			log.Fatalf("Could not create logger: %v\n", err)
		}
		defer logger.Sync()

		s := server.New(timetable.NewHTTPFetcher(), logger)
		logger.Info("listening", zap.String("addr", addr))
		if err := s.Run(addr); err != nil {
			logger.Fatal("server stopped", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("addr", "a", "", "Listen address (defaults to UC3MCAL_ADDR or :8080)")
}
