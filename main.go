package main

import (
	"os"

	"fjacquet/budget-import/cmd/importcmd"
	"fjacquet/budget-import/cmd/root"
)

func init() {
	root.Init()
	root.Cmd.AddCommand(importcmd.Cmd)
}

func main() {
	if err := root.Cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
