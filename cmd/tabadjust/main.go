package main

import "github.com/anshulg954/TabAdjust/cmd/tabadjust/cmd"

func main() {
	cmd.Execute()
}
