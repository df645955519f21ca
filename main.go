package main

import "github.com/liamg/stormscan/cmd"

func main() {
	cmd.Execute()
}
