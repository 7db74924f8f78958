package main

import "marksweep/cmd"

func main() {
	cmd.Execute()
}
