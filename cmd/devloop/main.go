// devloop runs a project's local dev server and file watcher, uploading the
// project whenever a change cannot be applied locally.
package main

import (
	"os"

	"github.com/hupe1980/devloop/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
