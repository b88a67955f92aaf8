// Command crisisfeed aggregates official disaster updates and social posts
// for a disaster context and prints them ranked by relevance.
package main

import (
	"fmt"
	"os"

	"github.com/ppiankov/crisisfeed/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
