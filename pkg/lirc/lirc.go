// Package lirc reads infrared remote-control events from a running lircd
// daemon over its unix socket.
package lirc

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
)

const DefaultSocketPath = "/var/run/lirc/lircd"

// Event is one decoded button press as reported by lircd. Repeat counts up
// while a button is held down; most callers only act on Repeat == 0.
type Event struct {
	Code   uint64
	Repeat int
	Button string
	Remote string
}

type Listener struct {
	socketPath string

	mux      sync.Mutex
	conn     net.Conn
	running  bool
	done     chan struct{}
	stopOnce sync.Once
	onEvent  func(Event)
}

func New(socketPath string) *Listener {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	return &Listener{
		socketPath: socketPath,
		done:       make(chan struct{}),
	}
}

func (l *Listener) SetEventCallback(fn func(Event)) {
	l.mux.Lock()
	defer l.mux.Unlock()
	l.onEvent = fn
}

// Start connects to lircd and consumes the broadcast stream until the
// context is cancelled, the daemon goes away, or Stop is called.
func (l *Listener) Start(ctx context.Context) error {
	l.mux.Lock()
	if l.running {
		l.mux.Unlock()
		return fmt.Errorf("listener is already running")
	}

	conn, err := net.Dial("unix", l.socketPath)
	if err != nil {
		l.mux.Unlock()
		return fmt.Errorf("failed to connect to lircd at %s: %w", l.socketPath, err)
	}
	l.conn = conn
	l.running = true
	l.mux.Unlock()

	go func() {
		<-ctx.Done()
		l.Stop()
	}()

	go l.readLoop(conn)
	return nil
}

func (l *Listener) readLoop(conn net.Conn) {
	defer l.Stop()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		event, err := ParseEvent(scanner.Text())
		if err != nil {
			// lircd also emits status replies on this socket; skip
			// anything that is not a button broadcast.
			continue
		}

		l.mux.Lock()
		handler := l.onEvent
		l.mux.Unlock()

		if handler != nil {
			handler(event)
		}
	}
}

func (l *Listener) Stop() {
	l.stopOnce.Do(func() {
		l.mux.Lock()
		defer l.mux.Unlock()
		l.running = false
		if l.conn != nil {
			l.conn.Close()
		}
		close(l.done)
	})
}

// Done is closed once the listener has fully stopped.
func (l *Listener) Done() <-chan struct{} {
	return l.done
}

// ParseEvent decodes one lircd broadcast line of the form
// "<hexcode> <repeat> <button> <remote>".
func ParseEvent(line string) (Event, error) {
	fields := strings.Fields(line)
	if len(fields) != 4 {
		return Event{}, fmt.Errorf("not a button broadcast: %q", line)
	}

	code, err := strconv.ParseUint(fields[0], 16, 64)
	if err != nil {
		return Event{}, fmt.Errorf("invalid scan code %q: %w", fields[0], err)
	}

	repeat, err := strconv.ParseInt(fields[1], 16, 32)
	if err != nil {
		return Event{}, fmt.Errorf("invalid repeat count %q: %w", fields[1], err)
	}

	return Event{
		Code:   code,
		Repeat: int(repeat),
		Button: fields[2],
		Remote: fields[3],
	}, nil
}
