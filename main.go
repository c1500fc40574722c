package main

import "github.com/uc3mcal/uc3mcal/cmd"

func main() {
	cmd.Execute()
}
