package main

import (
	"fmt"
	"os"

	"github.com/danielpatrickdp/demoai/go-trainer/internal/cmd"
)

// #region main

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main
