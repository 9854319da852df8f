// Command studyflow is the StudyFlow backend binary: a RAG pipeline that
// ingests teacher materials into per-project vector collections, answers
// grounded questions with conversation memory, and generates versioned
// educational artifacts.
package main

import (
	"fmt"
	"os"

	"github.com/Rafael-Dagostim/studyflow-go/cmd/studyflow/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
