package main

import "github.com/KaramelBytes/scoretune/cmd"

func main() {
	cmd.Execute()
}
