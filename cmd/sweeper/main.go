package main

import "github.com/vietddude/sweeper/internal/cli"

func main() {
	cli.Execute()
}
