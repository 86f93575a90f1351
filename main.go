package main

import "github.com/hadronlab/orbit/cmd"

func main() {
	cmd.Execute()
}
