package main

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "vmsim",
	Short: "vmsim runs workloads against a demand-paged virtual memory system.",
	Long: `vmsim runs workloads against a demand-paged virtual memory system ` +
		`with lazy loading, swapping, memory-mapped files and fork. Defaults ` +
		`of the run flags can be set with VMSIM_* variables in the ` +
		`environment or in a .env file.`,
	SilenceUsage: true,
}

// envInt returns the integer value of the environment variable, or def if the
// variable is unset or malformed.
func envInt(name string, def int) int {
	v, err := strconv.Atoi(os.Getenv(name))
	if err != nil {
		return def
	}

	return v
}

func envString(name, def string) string {
	v, found := os.LookupEnv(name)
	if !found {
		return def
	}

	return v
}
