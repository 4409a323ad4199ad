package main

import "DMPlayer/cmd"

func main() {
	cmd.Execute()
}
