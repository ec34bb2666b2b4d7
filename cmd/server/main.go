// Package main is the entry point for the camera relay service.
package main

import (
	"os"

	"camera-relay/cmd/server/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
