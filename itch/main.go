// Package main is the entry point of the itch command.
package main

import "github.com/sarchlab/itch/itch/cmd"

func main() {
	cmd.Execute()
}
