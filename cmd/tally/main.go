package main

import "github.com/user/tally/internal/cli"

func main() {
	cli.Execute()
}
