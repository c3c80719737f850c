package main

import "github.com/PieterjanRobbe/ftxctl/cmd"

func main() {
	cmd.Execute()
}
