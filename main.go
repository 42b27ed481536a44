package main

import "github.com/sessmux/sessmux/cmd"

func main() {
	cmd.Execute()
}
