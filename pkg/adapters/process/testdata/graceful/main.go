package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		fmt.Fprintf(os.Stderr, "received %s, cleaning up\n", sig)
		time.Sleep(200 * time.Millisecond)
		os.Exit(0)
	case <-time.After(10 * time.Second):
		fmt.Println("finished")
	}
}
