package main

import "github.com/atikulmunna/sleuth/internal/cmd"

func main() {
	cmd.Execute()
}
