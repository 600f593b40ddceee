package main

import "github.com/kusius/letterbox/internal/cli"

func main() {
	cli.Execute()
}
