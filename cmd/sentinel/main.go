package main

import (
	"github.com/streamops/sentinel/internal/cli"
)

func main() {
	cli.Execute()
}
