package main

import (
	"github.com/probelab/webprobe/cmd"
)

var version = "dev"

func main() {
	cmd.SetVersion(version)
	cmd.Execute()
}
