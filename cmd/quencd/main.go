// Command quencd is the quality-targeted encoding daemon. It owns the
// task queue, runs encodes, and answers the quenc CLI over a Unix
// socket.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "quencd: %v\n", err)
		os.Exit(1)
	}
}
