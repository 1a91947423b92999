package capture

import (
	"net/netip"
	"strings"

	"EnigmaNetz/Enigma-Capture/internal/logger"
)

// Device identifies something a capture can be opened on.
type Device struct {
	// Name is what the opener is given, e.g. "eth0" or "\Device\NPF_{...}".
	Name        string
	Description string
	Addresses   []netip.Addr
}

// Label is the human readable name of the device.
func (d Device) Label() string {
	if d.Description != "" {
		return d.Description + " (" + d.Name + ")"
	}
	return d.Name
}

func (d Device) String() string {
	return d.Name
}

// Catalog enumerates capturable devices. Every call re-reads live state.
type Catalog interface {
	ListDevices() ([]Device, error)
}

// AvailableDevices lists the catalog's devices. An enumeration failure is
// logged and reported as an empty list.
func AvailableDevices(c Catalog) []Device {
	devices, err := c.ListDevices()
	if err != nil {
		logger.GetLogger().Warn("[capture] Device enumeration failed: %v", err)
		return nil
	}
	return devices
}

// FindDevice picks a device by exact name, falling back to a case-insensitive
// match on the description.
func FindDevice(devices []Device, name string) (Device, bool) {
	for _, d := range devices {
		if d.Name == name {
			return d, true
		}
	}
	for _, d := range devices {
		if d.Description != "" && strings.EqualFold(d.Description, name) {
			return d, true
		}
	}
	return Device{}, false
}

// FirstActive returns the first device holding an address, skipping loopback
// devices, or the first device when none has one.
func FirstActive(devices []Device) (Device, bool) {
	for _, d := range devices {
		for _, a := range d.Addresses {
			if !a.IsLoopback() {
				return d, true
			}
		}
	}
	if len(devices) > 0 {
		return devices[0], true
	}
	return Device{}, false
}
