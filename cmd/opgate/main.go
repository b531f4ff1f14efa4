// opgate gates operations through principle checks and impact scoring,
// records every decision in a hash-chained audit ledger, and feeds
// outcomes back into health monitoring and adaptive learning.
package main

import (
	"github.com/opgate/opgate/internal/cli"
)

func main() {
	cli.Execute()
}
