package bluetooth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
)

type managedObjects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// BluezTransport drives the system BlueZ daemon over D-Bus.
type BluezTransport struct {
	conn   *dbus.Conn
	logger *slog.Logger
}

// NewBluezTransport connects to the system bus.
func NewBluezTransport(logger *slog.Logger) (*BluezTransport, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system D-Bus: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BluezTransport{conn: conn, logger: logger.With("component", "bluez")}, nil
}

func (t *BluezTransport) getManagedObjects(ctx context.Context) (managedObjects, error) {
	obj := t.conn.Object(BLUEZ_BUS_NAME, "/")
	var objects managedObjects
	err := obj.CallWithContext(ctx, DBUS_OBJECT_MANAGER_INTERFACE+".GetManagedObjects", 0).Store(&objects)
	if err != nil {
		return nil, fmt.Errorf("failed to get managed objects: %w", err)
	}
	return objects, nil
}

func (t *BluezTransport) findAdapter(ctx context.Context) (dbus.ObjectPath, error) {
	objects, err := t.getManagedObjects(ctx)
	if err != nil {
		return "", err
	}
	for path, object := range objects {
		if _, ok := object[BLUEZ_ADAPTER_INTERFACE]; ok {
			return path, nil
		}
	}
	return "", fmt.Errorf("bluetooth adapter not found")
}

// Scan runs discovery on the first adapter for timeout and returns every
// device BlueZ knows about on that adapter.
func (t *BluezTransport) Scan(ctx context.Context, timeout time.Duration) ([]Device, error) {
	adapterPath, err := t.findAdapter(ctx)
	if err != nil {
		return nil, err
	}

	adapter := t.conn.Object(BLUEZ_BUS_NAME, adapterPath)
	if err := adapter.CallWithContext(ctx, BLUEZ_ADAPTER_INTERFACE+".StartDiscovery", 0).Store(); err != nil {
		t.logger.Warn("could not start discovery", "adapter", adapterPath, "err", err)
	} else {
		defer adapter.Call(BLUEZ_ADAPTER_INTERFACE+".StopDiscovery", 0)
	}

	t.logger.Info("scanning", "adapter", adapterPath, "timeout", timeout)
	if err := sleepCtx(ctx, timeout); err != nil {
		return nil, err
	}

	objects, err := t.getManagedObjects(ctx)
	if err != nil {
		return nil, err
	}

	var devices []Device
	for path, object := range objects {
		props, ok := object[BLUEZ_DEVICE_INTERFACE]
		if !ok {
			continue
		}
		if a, ok := props["Adapter"].Value().(dbus.ObjectPath); !ok || a != adapterPath {
			continue
		}
		name, _ := props["Name"].Value().(string)
		addr, _ := props["Address"].Value().(string)
		devices = append(devices, Device{Name: name, Address: addr, Path: string(path)})
	}
	t.logger.Debug("scan complete", "devices", len(devices))
	return devices, nil
}

// Connect connects to dev, waits for GATT service resolution and looks up
// its characteristics.
func (t *BluezTransport) Connect(ctx context.Context, dev Device) (Conn, error) {
	devicePath := dbus.ObjectPath(dev.Path)
	device := t.conn.Object(BLUEZ_BUS_NAME, devicePath)

	t.logger.Info("connecting", "name", dev.Name, "address", dev.Address)
	if err := device.CallWithContext(ctx, BLUEZ_DEVICE_INTERFACE+".Connect", 0).Store(); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", dev.Address, err)
	}

	if err := t.waitServicesResolved(ctx, device); err != nil {
		device.Call(BLUEZ_DEVICE_INTERFACE+".Disconnect", 0)
		return nil, err
	}

	objects, err := t.getManagedObjects(ctx)
	if err != nil {
		device.Call(BLUEZ_DEVICE_INTERFACE+".Disconnect", 0)
		return nil, err
	}

	c := &bluezConn{
		transport: t,
		device:    device,
		address:   dev.Address,
		chars:     make(map[string]dbus.BusObject),
		handlers:  make(map[dbus.ObjectPath]func([]byte)),
		done:      make(chan struct{}),
	}
	prefix := string(devicePath) + "/"
	for path, object := range objects {
		props, ok := object[BLUEZ_GATT_CHAR_INTERFACE]
		if !ok || !strings.HasPrefix(string(path), prefix) {
			continue
		}
		uuid, _ := props["UUID"].Value().(string)
		c.chars[strings.ToLower(uuid)] = t.conn.Object(BLUEZ_BUS_NAME, path)
	}

	for _, uuid := range []string{ContentWriteUUID, NotificationWriteUUID} {
		if _, ok := c.chars[uuid]; !ok {
			device.Call(BLUEZ_DEVICE_INTERFACE+".Disconnect", 0)
			return nil, fmt.Errorf("characteristic %s not found on %s", uuid, dev.Address)
		}
	}
	t.logger.Info("connected", "address", dev.Address, "characteristics", len(c.chars))
	return c, nil
}

func (t *BluezTransport) waitServicesResolved(ctx context.Context, device dbus.BusObject) error {
	ctx, cancel := context.WithTimeout(ctx, ServiceResolveTimeout)
	defer cancel()
	for {
		var resolved bool
		err := device.CallWithContext(ctx, DBUS_PROPERTIES_INTERFACE+".Get", 0, BLUEZ_DEVICE_INTERFACE, "ServicesResolved").Store(&resolved)
		if err == nil && resolved {
			return nil
		}
		if err := sleepCtx(ctx, serviceResolvePollDelay); err != nil {
			return fmt.Errorf("waiting for service discovery: %w", err)
		}
	}
}

type bluezConn struct {
	transport *BluezTransport
	device    dbus.BusObject
	address   string
	chars     map[string]dbus.BusObject

	mu       sync.Mutex
	handlers map[dbus.ObjectPath]func([]byte)
	signals  chan *dbus.Signal
	done     chan struct{}
	closed   bool
}

func (c *bluezConn) Address() string { return c.address }

func (c *bluezConn) characteristic(uuid string) (dbus.BusObject, error) {
	ch, ok := c.chars[strings.ToLower(uuid)]
	if !ok {
		return nil, fmt.Errorf("characteristic %s not available on %s", uuid, c.address)
	}
	return ch, nil
}

func (c *bluezConn) WriteCharacteristic(ctx context.Context, uuid string, data []byte, withResponse bool) error {
	ch, err := c.characteristic(uuid)
	if err != nil {
		return err
	}
	writeType := "command"
	if withResponse {
		writeType = "request"
	}
	opts := map[string]interface{}{"type": writeType}
	return ch.CallWithContext(ctx, BLUEZ_GATT_CHAR_INTERFACE+".WriteValue", 0, data, opts).Store()
}

// SubscribeNotify enables notifications and routes PropertiesChanged
// signals for the characteristic to fn.
func (c *bluezConn) SubscribeNotify(ctx context.Context, uuid string, fn func([]byte)) error {
	ch, err := c.characteristic(uuid)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.signals == nil {
		rule := c.matchRule()
		if call := c.transport.conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.AddMatch", 0, rule); call.Err != nil {
			c.mu.Unlock()
			return fmt.Errorf("failed to add match signal: %w", call.Err)
		}
		c.signals = make(chan *dbus.Signal, 10)
		c.transport.conn.Signal(c.signals)
		go c.handleNotifications()
	}
	c.handlers[ch.Path()] = fn
	c.mu.Unlock()

	if err := ch.CallWithContext(ctx, BLUEZ_GATT_CHAR_INTERFACE+".StartNotify", 0).Store(); err != nil {
		return fmt.Errorf("failed to start notify on %s: %w", uuid, err)
	}
	return nil
}

func (c *bluezConn) matchRule() string {
	return fmt.Sprintf("type='signal',interface='%s',member='PropertiesChanged',arg0='%s',path_namespace='%s'",
		DBUS_PROPERTIES_INTERFACE, BLUEZ_GATT_CHAR_INTERFACE, c.device.Path())
}

func (c *bluezConn) handleNotifications() {
	for {
		select {
		case <-c.done:
			return
		case sig, ok := <-c.signals:
			if !ok {
				return
			}
			if sig.Name != DBUS_PROPERTIES_CHANGED_SIGNAL || len(sig.Body) < 2 {
				continue
			}
			if iface, ok := sig.Body[0].(string); !ok || iface != BLUEZ_GATT_CHAR_INTERFACE {
				continue
			}
			c.mu.Lock()
			fn := c.handlers[sig.Path]
			c.mu.Unlock()
			if fn == nil {
				continue
			}
			changed, ok := sig.Body[1].(map[string]dbus.Variant)
			if !ok {
				continue
			}
			if v, ok := changed["Value"]; ok {
				if value, ok := v.Value().([]byte); ok {
					fn(value)
				}
			}
		}
	}
}

func (c *bluezConn) Disconnect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	handlers := c.handlers
	c.handlers = map[dbus.ObjectPath]func([]byte){}
	signals := c.signals
	c.mu.Unlock()

	close(c.done)
	for path := range handlers {
		c.transport.conn.Object(BLUEZ_BUS_NAME, path).Call(BLUEZ_GATT_CHAR_INTERFACE+".StopNotify", 0)
	}
	if signals != nil {
		c.transport.conn.RemoveSignal(signals)
		c.transport.conn.BusObject().Call("org.freedesktop.DBus.RemoveMatch", 0, c.matchRule())
	}
	if err := c.device.Call(BLUEZ_DEVICE_INTERFACE+".Disconnect", 0).Store(); err != nil {
		return fmt.Errorf("failed to disconnect %s: %w", c.address, err)
	}
	return nil
}
