package main

import (
	"juris-robot/cmd/juris-robot/commands"
	"juris-robot/lib/util/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
