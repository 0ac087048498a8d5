package main

import "github.com/hmans/taskgraph/cmd"

func main() {
	cmd.Execute()
}
