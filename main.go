package main

import "github.com/atikulmunna/strand/internal/cmd"

func main() {
	cmd.Execute()
}
