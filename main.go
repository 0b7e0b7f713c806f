package main

import "github.com/repomindhq/repomind/cmd"

func main() {
	cmd.Execute()
}
