package main

import "domiflash/cmd"

func main() {
	cmd.Execute()
}
