package main

import (
	"libreminder/cmd/libreminder/commands"
	"libreminder/internal/components/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
