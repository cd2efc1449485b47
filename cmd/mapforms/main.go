// Package main provides the mapforms CLI.
package main

import "github.com/mesh-intelligence/mapforms/internal/cli"

func main() {
	cli.Execute()
}
