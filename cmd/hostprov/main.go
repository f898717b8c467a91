// Package main provides the hostprov binary.
//
// Usage:
//
//	hostprov serve                      - Run the HTTP API and the SSL watcher
//	hostprov provision -f order.yaml    - Provision one order from a file
//	hostprov check                      - Test control panel connectivity
//	hostprov credentials <order_ref>    - Show stored credentials of an order
//	hostprov version                    - Print version
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:]))
}

func run(ctx context.Context, args []string) int {
	root := Root()
	root.SetArgs(args)

	if err := root.ExecuteContext(ctx); err != nil {
		var sErr *ServerError
		if errors.As(err, &sErr) {
			fmt.Fprintf(os.Stderr, "error: %s\n", sErr.Error())
			return sErr.ExitCode
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return ExitConfigError
	}
	return ExitSuccess
}
