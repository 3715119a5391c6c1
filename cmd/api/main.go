package main

import (
	"os"

	"github.com/cun0/vessel-notify/cmd/api/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
