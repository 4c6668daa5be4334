// Command dbdelta compares live database schemas and manages SQL migrations.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/satishbabariya/dbdelta/cmd/dbdelta/commands"
)

func main() {
	if err := commands.Execute(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
