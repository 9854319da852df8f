package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Rafael-Dagostim/studyflow-go/internal/ingest"
	"github.com/Rafael-Dagostim/studyflow-go/internal/logging"
)

// NewIngestCmd constructs the `studyflow ingest` command.
func NewIngestCmd() *cobra.Command {
	var projectID, documentID string
	var reingest bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest uploaded documents into the project's vector collection",
		Long: `Runs the ingestion pipeline (load → split → embed → index) for a single
document or for every unprocessed document of a project. Already processed
documents are skipped. --reingest applies to --document only: it drops and
rebuilds that document's chunks.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if projectID == "" && documentID == "" {
				return fmt.Errorf("either --project or --document is required")
			}

			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			stack, cleanup, err := buildCore(ctx, log, nil)
			if err != nil {
				return err
			}
			defer cleanup()

			if documentID != "" {
				var res *ingest.Result
				if reingest {
					res, err = stack.Coordinator.Reingest(ctx, documentID)
				} else {
					res, err = stack.Coordinator.Ingest(ctx, documentID)
				}
				if err != nil {
					return err
				}
				printResult(ingest.ProjectResult{DocumentID: res.DocumentID, Result: res})
				return nil
			}

			results, err := stack.Coordinator.IngestProject(ctx, projectID)
			if err != nil {
				return err
			}
			fmt.Printf("Ingested project %s (%d documents):\n", projectID, len(results))
			for _, r := range results {
				printResult(r)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "Project ID to ingest (all unprocessed documents)")
	cmd.Flags().StringVar(&documentID, "document", "", "Single document ID to ingest")
	cmd.Flags().BoolVar(&reingest, "reingest", false, "Drop and rebuild the document's indexed chunks")

	return cmd
}
