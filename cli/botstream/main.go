package main

import (
	"os"

	botstreamcmder "github.com/papercomputeco/botstream/cmd/botstream"
)

func main() {
	cmd := botstreamcmder.NewBotstreamCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
