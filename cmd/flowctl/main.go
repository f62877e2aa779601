// Command flowctl inspects flow graphs offline: the handle matrix, the
// diff between two graph files, connection checks and stored versions.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
