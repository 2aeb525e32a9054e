package bluetooth

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Write is one characteristic write recorded by FakeTransport.
type Write struct {
	Address      string
	UUID         string
	Data         []byte
	WithResponse bool
}

// FakeTransport is an in-memory Transport. It records every write and can be
// told to fail scans, connects or individual writes. It backs the dry-run
// mode and the package tests.
type FakeTransport struct {
	mu sync.Mutex

	Devices    []Device
	ScanErr    error
	ConnectErr map[string]error // keyed by address

	// FailWrite, when set, is consulted before each write is recorded.
	FailWrite func(w Write) error
	// OnWrite, when set, is called after each recorded write.
	OnWrite func(w Write)

	writes      []Write
	conns       map[string]*fakeConn
	scans       int
	disconnects int
}

// NewFakeTransport returns a transport that advertises one left and one
// right eye.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{
		Devices: []Device{
			{Name: "Even G2_L_FAKE", Address: "00:00:00:00:00:01", Path: "fake/left"},
			{Name: "Even G2_R_FAKE", Address: "00:00:00:00:00:02", Path: "fake/right"},
		},
		ConnectErr: make(map[string]error),
		conns:      make(map[string]*fakeConn),
	}
}

func (t *FakeTransport) Scan(ctx context.Context, _ time.Duration) ([]Device, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scans++
	if t.ScanErr != nil {
		return nil, t.ScanErr
	}
	return append([]Device(nil), t.Devices...), ctx.Err()
}

func (t *FakeTransport) Connect(ctx context.Context, dev Device) (Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.ConnectErr[dev.Address]; err != nil {
		return nil, err
	}
	c := &fakeConn{transport: t, address: dev.Address, subs: make(map[string]func([]byte))}
	t.conns[dev.Address] = c
	return c, nil
}

// Writes returns a copy of every write recorded so far.
func (t *FakeTransport) Writes() []Write {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Write(nil), t.writes...)
}

// WritesTo returns the writes sent to address.
func (t *FakeTransport) WritesTo(address string) []Write {
	var out []Write
	for _, w := range t.Writes() {
		if w.Address == address {
			out = append(out, w)
		}
	}
	return out
}

// ClearWrites forgets the recorded writes.
func (t *FakeTransport) ClearWrites() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writes = nil
}

// Subscribed reports whether uuid has a notify handler on address.
func (t *FakeTransport) Subscribed(address, uuid string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.conns[address]
	if !ok {
		return false
	}
	_, ok = c.subs[uuid]
	return ok
}

// Notify delivers data to the notify handler registered for uuid on address.
func (t *FakeTransport) Notify(address, uuid string, data []byte) error {
	t.mu.Lock()
	c, ok := t.conns[address]
	var fn func([]byte)
	if ok {
		fn = c.subs[uuid]
	}
	t.mu.Unlock()
	if fn == nil {
		return fmt.Errorf("no subscriber for %s on %s", uuid, address)
	}
	fn(data)
	return nil
}

// Disconnects returns how many connections have been closed.
func (t *FakeTransport) Disconnects() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.disconnects
}

// Scans returns how many scans have run.
func (t *FakeTransport) Scans() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scans
}

type fakeConn struct {
	transport *FakeTransport
	address   string
	subs      map[string]func([]byte)
	closed    bool
}

func (c *fakeConn) Address() string { return c.address }

func (c *fakeConn) WriteCharacteristic(ctx context.Context, uuid string, data []byte, withResponse bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w := Write{Address: c.address, UUID: uuid, Data: append([]byte(nil), data...), WithResponse: withResponse}

	t := c.transport
	t.mu.Lock()
	if c.closed {
		t.mu.Unlock()
		return fmt.Errorf("connection to %s closed", c.address)
	}
	if t.FailWrite != nil {
		if err := t.FailWrite(w); err != nil {
			t.mu.Unlock()
			return err
		}
	}
	t.writes = append(t.writes, w)
	onWrite := t.OnWrite
	t.mu.Unlock()

	if onWrite != nil {
		onWrite(w)
	}
	return nil
}

func (c *fakeConn) SubscribeNotify(_ context.Context, uuid string, fn func([]byte)) error {
	c.transport.mu.Lock()
	defer c.transport.mu.Unlock()
	c.subs[uuid] = fn
	return nil
}

func (c *fakeConn) Disconnect() error {
	c.transport.mu.Lock()
	defer c.transport.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.subs = map[string]func([]byte){}
	c.transport.disconnects++
	return nil
}
