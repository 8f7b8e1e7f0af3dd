package main

import "replibench/cmd"

func main() {
	cmd.Execute()
}
