package main

import (
	"token-signal-watch/internal/cli"
)

func main() {
	cli.Execute()
}
