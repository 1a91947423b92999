package capture

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

type catalogFunc func() ([]Device, error)

func (f catalogFunc) ListDevices() ([]Device, error) { return f() }

func TestAvailableDevices(t *testing.T) {
	devices := []Device{{Name: "eth0"}, {Name: "lo"}}

	got := AvailableDevices(catalogFunc(func() ([]Device, error) { return devices, nil }))
	assert.Equal(t, devices, got)

	got = AvailableDevices(catalogFunc(func() ([]Device, error) { return nil, errors.New("no permission") }))
	assert.Empty(t, got)
}

func TestFindDevice(t *testing.T) {
	devices := []Device{
		{Name: `\Device\NPF_{1234}`, Description: "Intel Ethernet"},
		{Name: "eth0"},
	}

	tests := []struct {
		name   string
		query  string
		want   string
		wantOK bool
	}{
		{"exact name", "eth0", "eth0", true},
		{"npcap name", `\Device\NPF_{1234}`, `\Device\NPF_{1234}`, true},
		{"description match", "intel ethernet", `\Device\NPF_{1234}`, true},
		{"unknown", "wlan0", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FindDevice(devices, tt.query)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got.Name)
		})
	}
}

func TestFirstActive(t *testing.T) {
	lo := Device{Name: "lo", Addresses: []netip.Addr{netip.MustParseAddr("127.0.0.1")}}
	down := Device{Name: "eth1"}
	up := Device{Name: "eth0", Addresses: []netip.Addr{netip.MustParseAddr("192.168.1.5")}}

	got, ok := FirstActive([]Device{lo, down, up})
	assert.True(t, ok)
	assert.Equal(t, "eth0", got.Name)

	got, ok = FirstActive([]Device{down, lo})
	assert.True(t, ok)
	assert.Equal(t, "eth1", got.Name)

	_, ok = FirstActive(nil)
	assert.False(t, ok)
}

func TestDeviceLabel(t *testing.T) {
	assert.Equal(t, "eth0", Device{Name: "eth0"}.Label())
	assert.Equal(t, "Wi-Fi (wlan0)", Device{Name: "wlan0", Description: "Wi-Fi"}.Label())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "idle", Status{}.String())
	assert.Equal(t, "capturing(eth0)", Status{State: StateCapturing, Device: eth0}.String())
	assert.Equal(t, "failed(boom)", Status{State: StateFailed, Err: errors.New("boom")}.String())
}
