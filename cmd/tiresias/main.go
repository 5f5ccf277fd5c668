package main

import (
	"os"

	"github.com/MeKo-Tech/tiresias/cmd/tiresias/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
