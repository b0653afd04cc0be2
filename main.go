package main

import "portfolio-tracker/cmd"

func main() {
	cmd.Execute()
}
