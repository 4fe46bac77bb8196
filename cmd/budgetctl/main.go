// Command budgetctl analyzes and validates budgets stored as JSON files,
// without a database or the HTTP API.
package main

import "os"

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}
