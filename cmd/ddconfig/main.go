package main

import (
	"fmt"
	"os"
)

func main() {
	a := &app{}
	err := newRootCmd(a).Execute()

	if closeErr := a.close(); closeErr != nil {
		fmt.Fprintln(os.Stderr, closeErr)
	}

	if err != nil {
		os.Exit(1)
	}
}
