package bluetooth

import (
	"context"
	"strings"
	"time"
)

// Eye selects one of the two displays.
type Eye int

const (
	LeftEye Eye = iota
	RightEye
)

func (e Eye) String() string {
	if e == RightEye {
		return "right"
	}
	return "left"
}

// Device is a peripheral seen during a scan.
type Device struct {
	Name    string
	Address string
	// Path is the transport-specific handle, e.g. the BlueZ object path.
	Path string
}

// Eye reports which display the device is, based on its advertised name.
func (d Device) Eye() (Eye, bool) {
	if !strings.Contains(d.Name, DeviceNameMarker) {
		return 0, false
	}
	switch {
	case strings.Contains(d.Name, LeftEyeMarker):
		return LeftEye, true
	case strings.Contains(d.Name, RightEyeMarker):
		return RightEye, true
	}
	return 0, false
}

// Transport is the BLE central capability the session is built on.
type Transport interface {
	Scan(ctx context.Context, timeout time.Duration) ([]Device, error)
	Connect(ctx context.Context, dev Device) (Conn, error)
}

// Conn is one connected peripheral.
type Conn interface {
	WriteCharacteristic(ctx context.Context, uuid string, data []byte, withResponse bool) error
	SubscribeNotify(ctx context.Context, uuid string, fn func([]byte)) error
	Disconnect() error
	Address() string
}

// findEyes picks the first device for each eye.
func findEyes(devices []Device) map[Eye]Device {
	found := make(map[Eye]Device, 2)
	for _, d := range devices {
		eye, ok := d.Eye()
		if !ok {
			continue
		}
		if _, dup := found[eye]; !dup {
			found[eye] = d
		}
	}
	return found
}
