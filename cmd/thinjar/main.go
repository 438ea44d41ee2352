package main

import "github.com/aweris/thinjar/cmd/thinjar/cmd"

func main() {
	cmd.Execute()
}
