package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ngit-go/ngit/internal/env"
)

func main() {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := newRootCmd(cwd, env.NewFromOs()).Execute(); err != nil {
		if !errors.Is(err, errNotIgnored) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
