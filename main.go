package main

import "github.com/sadmint001/final-ryoko-tours-kenya-sub001/cmd"

func main() {
	cmd.Execute()
}
