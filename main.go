package main

import "github.com/jromero/facetrack/cmd"

func main() {
	cmd.Execute()
}
