// Package main provides the cmdb CLI over a local SQLite database.
package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	a := &app{}
	err := newRootCmd(a).Execute()
	if err = errors.Join(err, a.close()); err != nil {
		fmt.Fprintln(os.Stderr, "cmdb:", err)
		os.Exit(exitCode(err))
	}
}
