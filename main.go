package main

import "tgpull/internal/cli"

func main() {
	cli.Execute()
}
