package main

import "github.com/Togather-Foundation/eventhub/cmd/server/cmd"

func main() {
	cmd.Execute()
}
