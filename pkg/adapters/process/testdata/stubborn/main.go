package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Ignores interrupts so the runner has to kill it.
func main() {
	signal.Ignore(os.Interrupt, syscall.SIGTERM)
	for {
		time.Sleep(time.Second)
	}
}
