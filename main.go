package main

import "github.com/kumalab/kaiwastats/cmd"

func main() {
	cmd.Execute()
}
