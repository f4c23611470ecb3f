package main

import "github.com/deploymenttheory/go-vhdx/cmd"

func main() {
	cmd.Execute()
}
