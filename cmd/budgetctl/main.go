// Command budgetctl prints budget dashboards in the terminal.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "  error:", err)
		os.Exit(1)
	}
}
