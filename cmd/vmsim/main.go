// Command vmsim exercises the demand-paged virtual memory system with a set of
// synthetic workloads.
package main

import (
	"github.com/joho/godotenv"
	"github.com/tebeka/atexit"
)

func main() {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
