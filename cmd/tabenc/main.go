// Package main provides the tabenc CLI for managing extract encryption on
// Tableau Server sites.
package main

import "github.com/tabadm/tabenc/cmd/tabenc/commands"

func main() {
	commands.Execute(VERSION)
}
