// Package main is the entry point for the ngcap capture file toolkit.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/ngcap/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
