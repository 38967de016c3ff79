package main

import "perspective/internal/cli"

func main() {
	cli.Execute()
}
