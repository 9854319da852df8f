package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Rafael-Dagostim/studyflow-go/internal/version"
)

// NewVersionCmd constructs the `studyflow version` command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build version information",
		Run: func(*cobra.Command, []string) {
			fmt.Printf("studyflow %s (commit %s, built %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
