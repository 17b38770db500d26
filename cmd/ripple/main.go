// Command ripple runs the Ripple realtime messaging server.
package main

import (
	"os"

	"ripple/internal/app"
)

func main() {
	os.Exit(app.Run())
}
