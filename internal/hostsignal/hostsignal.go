// hostsignal.go - Host OS signal bridge (spec.md component K)

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

// Package hostsignal bridges host OS signals into guest interrupt
// priorities, the same shape as the teacher's TerminalHost
// (terminal_host.go): a background goroutine reads an external source
// until stopCh closes, translating what it sees into calls against the
// emulator core rather than an MMIO device.
package hostsignal

import (
	"os"
	"os/signal"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/intuitionamiga/m68kjit/internal/interrupt"
)

// Generator is the subset of interrupt.Controller a Bridge needs,
// narrowed so tests can supply a fake without building a CPUState.
type Generator interface {
	Generate(priority int)
}

// Mapping assigns a guest interrupt priority (1..7) to a host signal.
type Mapping struct {
	Signal   os.Signal
	Priority int
}

// Bridge forwards host signals to a guest interrupt.Controller for as
// long as it's running, letting the host terminal's Ctrl-C or a
// supervisor's SIGUSR1 reach guest code as a real 68k interrupt instead
// of killing the process outright.
type Bridge struct {
	gen      Generator
	mappings []Mapping
	sigCh    chan os.Signal
	stopCh   chan struct{}
	done     chan struct{}
	stopped  sync.Once
}

// NewBridge builds a Bridge that, once Start is called, forwards each
// mapped signal to gen.Generate(priority) as it arrives.
func NewBridge(gen Generator, mappings []Mapping) *Bridge {
	return &Bridge{
		gen:      gen,
		mappings: mappings,
		sigCh:    make(chan os.Signal, len(mappings)),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// DefaultMappings maps SIGINT to the unmaskable NMI priority and
// SIGUSR1 to a level-1 (lowest maskable) device interrupt, a
// reasonable default for an interactive debugger session.
func DefaultMappings() []Mapping {
	return []Mapping{
		{Signal: unix.SIGINT, Priority: interrupt.NMIPriority},
		{Signal: unix.SIGUSR1, Priority: 1},
	}
}

// Start installs the signal handlers and begins forwarding in a
// background goroutine. Call Stop to tear it down.
func (b *Bridge) Start() {
	sigs := make([]os.Signal, len(b.mappings))
	for i, m := range b.mappings {
		sigs[i] = m.Signal
	}
	signal.Notify(b.sigCh, sigs...)

	go func() {
		defer close(b.done)
		for {
			select {
			case <-b.stopCh:
				return
			case sig := <-b.sigCh:
				for _, m := range b.mappings {
					if m.Signal == sig {
						b.gen.Generate(m.Priority)
						break
					}
				}
			}
		}
	}()
}

// Stop terminates the forwarding goroutine and restores default signal
// disposition for every mapped signal.
func (b *Bridge) Stop() {
	b.stopped.Do(func() {
		signal.Stop(b.sigCh)
		close(b.stopCh)
	})
	<-b.done
}
