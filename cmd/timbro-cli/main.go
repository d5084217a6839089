package main

import "timbro/internal/cli/cmd"

func main() {
	cmd.Execute()
}
