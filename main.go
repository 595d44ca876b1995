package main

import "github.com/kozaktomas/photo-match/cmd"

func main() {
	cmd.Execute()
}
