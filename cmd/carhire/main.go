// Command carhire runs the car hire backend: the HTTP API over the collection store, database
// migrations, test-data seeding and small admin helpers.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
