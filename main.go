package main

import "github.com/Mohsinsiddi/w3ns/cmd"

func main() {
	cmd.Execute()
}
