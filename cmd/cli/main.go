package main

import (
	"github.com/mchmarny/leadpulse/pkg/cli"
)

func main() {
	cli.Execute()
}
