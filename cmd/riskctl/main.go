// Command riskctl is a command-line client for the heart-risk prediction
// service and its prediction log.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
