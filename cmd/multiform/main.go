// Command multiform runs the TKT Multiform local backend: the licensed
// HTTP shell serving the activation API, the counting and PDF tools,
// and the websocket progress feed for the desktop frontend.
package main

import (
	"fmt"
	"os"

	"tktcli/internal/app"
)

func main() {
	application, err := app.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "multiform: %v\n", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		application.Logger.Error("application exited with error", "error", err)
		os.Exit(1)
	}
}
