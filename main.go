package main

import "github.com/nextlevelbuilder/switchboard/cmd"

func main() {
	cmd.Execute()
}
