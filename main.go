package main

import "github.com/nextlevelbuilder/crewrelay/cmd"

func main() {
	cmd.Execute()
}
