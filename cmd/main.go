package main

import "github.com/MimeLyc/linklingua/internal/cli"

func main() {
	cli.Main()
}
