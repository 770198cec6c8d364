package main

import "github.com/bryanchriswhite/wlrsrc/cmd/wlrsrc/commands"

func main() {
	commands.Execute()
}
