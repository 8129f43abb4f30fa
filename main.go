package main

import "github.com/gregmatthewcrossley/jlc-has-it/cmd"

func main() {
	cmd.Execute()
}
