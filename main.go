package main

import "github.com/nextlevelbuilder/tinyclaw/cmd"

func main() {
	cmd.Execute()
}
