package main

import (
	"os"

	"reply-gateway/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
