package main

import "github.com/moamenhredeen/oascall/cmd"

func main() {
	cmd.Execute()
}
