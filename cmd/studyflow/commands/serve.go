package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Rafael-Dagostim/studyflow-go/internal/config"
	"github.com/Rafael-Dagostim/studyflow-go/internal/logging"
	"github.com/Rafael-Dagostim/studyflow-go/internal/server"
)

// NewServeCmd constructs the `studyflow serve` command.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the StudyFlow HTTP server",
		Long: `Starts the HTTP server exposing the websocket chat session, file
generation endpoints, ingestion triggers, health probes, and Prometheus
metrics. The server shuts down gracefully on SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx = logging.WithLogger(ctx, log)

			stack, cleanup, err := buildCore(ctx, log, nil)
			if err != nil {
				return err
			}
			defer cleanup()

			srv, err := server.New(server.Deps{
				Store:       stack.Store,
				Engine:      stack.Engine,
				Memory:      stack.Memory,
				Model:       stack.Model,
				Coordinator: stack.Coordinator,
				Generator:   stack.Generator,
			}, &server.Config{
				Host:      config.EnvStr("SERVER_HOST", ""),
				Port:      config.EnvInt("SERVER_PORT", 0),
				APIKey:    config.EnvStr("STUDYFLOW_API_KEY", ""),
				RateLimit: float64(config.EnvInt("SERVER_RATE_LIMIT", 0)),
				RateBurst: config.EnvInt("SERVER_RATE_BURST", 0),
				Logger:    log,
				Pingers: []server.Pinger{
					server.StorePinger{Store: stack.Store},
					server.ObjectsPinger{Objects: stack.Objects},
					server.VectorPinger{Vectors: stack.Vectors, ProbeProject: "readiness-probe"},
				},
			})
			if err != nil {
				return err
			}
			// Generation progress flows to the owner's open websocket
			// sessions.
			stack.Generator.SetNotifier(srv.Notifier())

			return srv.Start(ctx)
		},
	}
}
