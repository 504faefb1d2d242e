// Command handsign collects hand landmark examples from a camera, trains a
// gesture classifier on them and reports detections.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
