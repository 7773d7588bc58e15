// Command epiprep preprocesses FHIR ePI documents from the command line.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
