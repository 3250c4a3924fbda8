package main

import "github.com/dyike/twpbr/internal/cli"

func main() {
	// Execute the root command
	cli.Run()
}
