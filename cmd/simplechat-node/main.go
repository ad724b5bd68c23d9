package main

import "github.com/rajnipawar/SimpleChat-DSDV-Routing/cmd/simplechat-node/command"

func main() {
	command.Execute()
}
