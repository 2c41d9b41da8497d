package main

import "github.com/wemokit/wemoscrape/cmd"

func main() {
	cmd.Execute()
}
