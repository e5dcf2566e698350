// main.go
package main

import (
	"os"

	"github.com/ryan-mccabe/oled-tools/cmd"
	"github.com/ryan-mccabe/oled-tools/pkg/logging"
)

func main() {
	if err := cmd.Execute(); err != nil {
		logging.LogError(logging.External, err)
		os.Exit(1)
	}
}
