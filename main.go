package main

import (
	"fmt"
	"os"

	"github.com/homemade/hubsync/cmd/hubsync"
)

func main() {
	if err := hubsync.NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
