package main

import "github.com/appsworld/macho-edit/cmd/macho-edit/cmd"

func main() {
	cmd.Execute()
}
