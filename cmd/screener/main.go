// Package main is the screener command-line client. It runs the same
// pipeline as the HTTP service without starting a server.
package main

import "github.com/aristath/screener/internal/cli"

func main() {
	cli.Execute()
}
