package main

import "github.com/ficojok/ZETdev/internal/cli"

func main() {
	cli.Execute()
}
