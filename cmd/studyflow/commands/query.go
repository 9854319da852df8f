package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Rafael-Dagostim/studyflow-go/internal/logging"
	"github.com/Rafael-Dagostim/studyflow-go/internal/rag"
)

// NewQueryCmd constructs the `studyflow query` command.
func NewQueryCmd() *cobra.Command {
	var projectID, queryType string

	cmd := &cobra.Command{
		Use:   "query [question]",
		Short: "Ask a one-shot question against a project's documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				return fmt.Errorf("--project is required")
			}

			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			stack, cleanup, err := buildCore(ctx, log, nil)
			if err != nil {
				return err
			}
			defer cleanup()

			kind := rag.EducationalType(queryType)
			res, err := stack.Engine.EducationalQuery(ctx, projectID, args[0], kind, "")
			if err != nil {
				return err
			}

			fmt.Println(res.Answer)
			if len(res.Sources) > 0 {
				fmt.Println("\nSources:")
				for i, src := range res.Sources {
					fmt.Printf("  %d. %s (chunk %d, score %.2f)\n", i+1, src.Filename, src.ChunkIndex, src.Score)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "Project ID to query")
	cmd.Flags().StringVar(&queryType, "type", "question", "Query type: question, summary, quiz, explanation")

	return cmd
}
