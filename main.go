package main

import "github.com/frahmantamala/menu-authz/cmd"

func main() {
	cmd.Execute()
}
