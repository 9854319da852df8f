// Package commands defines all Cobra CLI commands for the studyflow
// binary.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Rafael-Dagostim/studyflow-go/internal/config"
	"github.com/Rafael-Dagostim/studyflow-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach
// to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "studyflow",
		Short: "StudyFlow — RAG backend for AI-assisted teaching",
		Long: `StudyFlow ingests teacher-uploaded documents into per-project vector
collections, answers student questions grounded in those documents while
maintaining conversation memory, and generates versioned study materials
(study guides, quizzes, summaries, lesson plans) as PDF or Markdown.

Configuration comes from environment variables, an optional .env file, or
a YAML config file (~/.studyflow/config.yaml). Environment variables
always win. See 'studyflow --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// A .env in the working directory seeds the environment before
			// YAML resolution; real env vars still take precedence.
			_ = godotenv.Load()

			log := logging.New()
			if _, err := config.Load(configPath, log); err != nil {
				return err
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.studyflow/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewIngestCmd(),
		NewQueryCmd(),
		NewVersionCmd(),
	)

	return root
}
