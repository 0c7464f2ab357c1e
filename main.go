package main

import "github.com/lukman83/dealscout/cmd"

func main() {
	cmd.Execute()
}
