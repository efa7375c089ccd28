package main

import "github.com/kozaktomas/signet/cmd"

func main() {
	cmd.Execute()
}
