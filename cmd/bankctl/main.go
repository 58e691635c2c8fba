package main

import "github.com/mcoot/gamebank/internal/cli"

func main() {
	cli.Execute()
}
