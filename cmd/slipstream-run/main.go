// Command slipstream-run loads the slipstream module and runs a tunnel from
// the command line, using the same shim and service as the host bridge.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/VAHHABSY/SlipstreamApp/cmd/slipstream-run/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		var exit *cmd.ExitError
		if errors.As(err, &exit) {
			os.Exit(exit.Code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
