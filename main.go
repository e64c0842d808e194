package main

import "github.com/metal-toolbox/ooinstall/cmd"

func main() {
	cmd.Execute()
}
