// Command biketrackctl runs operator tasks against the BikeTrack store and
// job queue.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(defaultToolkit()).Execute(); err != nil {
		os.Exit(1)
	}
}
