package main

import "github.com/Alijeyrad/franchise_backend/cmd"

func main() {
	cmd.Execute()
}
