package main

import "github.com/srerickson/ocflstore/cmd/ocflstore/cmd"

func main() {
	cmd.Execute()
}
