// Command sciconv converts between scientific and visual-effects data files:
// point matrices, reduced C3D motion files, raw depth files, float TIFFs and
// ASCII arrays.
package main

import (
	"fmt"
	"os"

	"github.com/banshee-data/sciconv/internal/monitoring"
)

func main() {
	err := newRootCommand(os.Stdout, os.Stderr).Execute()
	_ = monitoring.L().Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "sciconv: %v\n", err)
		os.Exit(1)
	}
}
