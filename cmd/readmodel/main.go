// Command readmodel builds and serves the Victory dashboard read model.
package main

import (
	"context"
	"fmt"
	"os"

	"victory-readmodel/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
