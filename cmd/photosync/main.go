package main

import "go-photosync/cmd/photosync/cmd"

func main() {
	cmd.Execute()
}
