package main

import (
	"github.com/sirupsen/logrus"

	"github.com/watchless/watchless/cmd"
)

// init configures the initial logging level for Watchless.
func init() {
	logrus.SetLevel(logrus.InfoLevel)
}

// main delegates to the cmd package, which handles CLI setup, flag parsing,
// and the run loop.
func main() {
	cmd.Execute()
}
