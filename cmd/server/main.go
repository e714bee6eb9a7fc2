package main

import "github.com/Togather-Foundation/favorites/cmd/server/cmd"

func main() {
	cmd.Execute()
}
