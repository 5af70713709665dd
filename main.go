// kinosync keeps a live local view of a remote file node and sends it folder
// and move commands.
package main

import (
	"os"

	"github.com/kinofiles/kinosync/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
