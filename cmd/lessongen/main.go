// Command lessongen generates lessons from the academic program outside
// the HTTP service: whole-program batches, single topics and taxonomy
// inspection.
package main

import "os"

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
