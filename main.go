package main

import (
	"github.com/cometlabs/comet/cmd"
)

func main() {
	cmd.Execute()
}
