package main

import "github.com/xvierd/focus-cli/cmd"

func main() {
	cmd.Execute()
}
