// aptkit - Atom probe POS toolkit
package main

import (
	"fmt"
	"os"

	"github.com/ChrisMcGann/aptkit/cmd/aptkit/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
