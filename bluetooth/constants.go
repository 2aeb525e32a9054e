package bluetooth

import "time"

const (
	BLUEZ_BUS_NAME                 = "org.bluez"
	BLUEZ_ADAPTER_INTERFACE        = "org.bluez.Adapter1"
	BLUEZ_DEVICE_INTERFACE         = "org.bluez.Device1"
	BLUEZ_GATT_CHAR_INTERFACE      = "org.bluez.GattCharacteristic1"
	DBUS_PROPERTIES_INTERFACE      = "org.freedesktop.DBus.Properties"
	DBUS_OBJECT_MANAGER_INTERFACE  = "org.freedesktop.DBus.ObjectManager"
	DBUS_PROPERTIES_CHANGED_SIGNAL = DBUS_PROPERTIES_INTERFACE + ".PropertiesChanged"
)

// G2 GATT characteristics. Each eye exposes a content pair and a
// notification pair on the same vendor base UUID.
const (
	G2UUIDBase = "00002760-08c2-11e1-9073-0e8ac72e"

	ContentWriteUUID       = G2UUIDBase + "5401" // auth, teleprompter, Even-AI, heartbeat
	ContentNotifyUUID      = G2UUIDBase + "5402"
	NotificationWriteUUID  = G2UUIDBase + "7401" // file transfer
	NotificationNotifyUUID = G2UUIDBase + "7402"
)

// Device identification
const (
	DeviceNameMarker = "G2"
	LeftEyeMarker    = "_L_"
	RightEyeMarker   = "_R_"
)

const (
	DefaultScanTimeout      = 10 * time.Second
	DefaultQueueSize        = 32
	ServiceResolveTimeout   = 10 * time.Second
	serviceResolvePollDelay = 250 * time.Millisecond
)
