package main

import (
	"bufio"
	"fmt"
	"log"
	"sync"

	"go.bug.st/serial"
)

// DebugConsole is a plain asynchronous UART reader, distinct from the
// engine's synchronous data/ack link: it exists to capture a peer's boot
// banner and firmware log lines during bring-up, a common pattern
// alongside a symmetric data link. Modeled on the teacher's
// pkg/usock.readLoop (a dedicated goroutine scanning a serial port, a stop
// flag, a WaitGroup join on Close), built on go.bug.st/serial instead of
// tarm/serial.
type DebugConsole struct {
	port serial.Port
	wg   sync.WaitGroup
}

// OpenDebugConsole opens device at baud and starts logging every line it
// reads, prefixed so it's distinguishable from the daemon's own log lines.
func OpenDebugConsole(device string, baud int) (*DebugConsole, error) {
	port, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("debugconsole: open %s: %w", device, err)
	}

	dc := &DebugConsole{port: port}
	dc.wg.Add(1)
	go dc.readLoop()
	return dc, nil
}

func (dc *DebugConsole) readLoop() {
	defer dc.wg.Done()
	scanner := bufio.NewScanner(dc.port)
	for scanner.Scan() {
		log.Printf("peer console: %s", scanner.Text())
	}
}

// Close closes the underlying port, which unblocks the read loop's
// in-flight Read, then joins it.
func (dc *DebugConsole) Close() {
	dc.port.Close()
	dc.wg.Wait()
}
