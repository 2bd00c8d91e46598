package main

import "anydown/cmd"

func main() {
	cmd.Execute()
}
