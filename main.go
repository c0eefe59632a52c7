package main

import "github.com/avilarec/morningbrief/cmd"

func main() {
	cmd.Execute()
}
