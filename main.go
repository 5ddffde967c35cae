package main

import (
	"fmt"
	"os"

	"github.com/koopa0/steenbok/cmd"
)

func main() {
	code, err := cmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(code)
}
