package main

import "github.com/hhsearch/crawlcontrol/cmd"

func main() {
	cmd.Execute()
}
