package cmd

import (
	"github.com/spf13/cobra"

	"github.com/rtzll/utube/internal"
)

// serveCmd runs the web form and JSON API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web summarizer",
	Long: `Serve a web page with a single URL field. Submitting it shows the video
thumbnail, the summary and the transcript.

The same pipeline is available as JSON:
  POST /api/summarize   {"url": "..."}
  POST /api/transcript  {"url": "..."}

GET /healthz and GET /metrics are there for probes.`,
	Example: `  # Serve on the default address (:8501)
  utube serve

  # Serve on another port with Anthropic summaries
  utube serve --addr :8080 -P anthropic`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		// spinners and prompts make no sense behind HTTP
		config.Quiet = true
		config.Verbose = false
		draining.Store(true)

		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			config.Addr = addr
		}
		return internal.ValidateSummaryRequirements(cmd, config)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := internal.NewServerLogger(config.LogLevel)

		app, err := buildApp(cmd, internal.WithLogger(logger))
		if err != nil {
			return err
		}
		defer app.Close()
		defer internal.CleanupTempDir(config.TempDir)

		server, err := internal.NewServer(app, logger)
		if err != nil {
			return err
		}

		logger.Info().
			Str("provider", config.Provider).
			Str("model", config.Model).
			Str("cache", config.CacheBackend).
			Msg("utube web summarizer")

		return server.ListenAndServe(cmd.Context(), config.Addr)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default from config, :8501)")
	internal.AddSummaryFlags(serveCmd)
	rootCmd.AddCommand(serveCmd)
}
