package main

import "github.com/jjenkins/laborwatch/cmd"

func main() {
	cmd.Execute()
}
