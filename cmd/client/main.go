// pairchat terminal client
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pairchat/pairchat/internal/tui"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "pairchat server URL")
	flag.Parse()

	app := tui.NewApp(*serverURL)
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
