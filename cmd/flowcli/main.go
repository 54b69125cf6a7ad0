// Command flowcli runs messages through the scheduling flow from a terminal.
//
// Usage:
//
//	flowcli process "Schedule a meeting for tomorrow at 3pm" --sender +972501234567
//	flowcli demo --fake-calendar
//	flowcli traces --limit 20
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, red("❌ "+err.Error()))
		os.Exit(1)
	}
}
