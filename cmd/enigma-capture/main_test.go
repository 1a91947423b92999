package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EnigmaNetz/Enigma-Capture/internal/pcapfile"
)

func baseArgs(t *testing.T) []string {
	dir := t.TempDir()
	return []string{"-config", filepath.Join(dir, "none.json"), "-env", filepath.Join(dir, "none.env"), "-print=false"}
}

func TestRunReplaysAndSaves(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.pcap")
	w, err := pcapfile.Create(in, 65535, layers.LinkTypeEthernet)
	require.NoError(t, err)
	require.NoError(t, w.WriteFrame(gopacket.CaptureInfo{Timestamp: time.Now()}, make([]byte, 60)))
	require.NoError(t, w.Close())

	out := filepath.Join(dir, "out", "copy.pcap")
	code := run(append(baseArgs(t), "-r", in, "-w", out))

	assert.Equal(t, 0, code)
	assert.FileExists(t, out)
}

func TestRunRejectsBadInterface(t *testing.T) {
	assert.Equal(t, 1, run(append(baseArgs(t), "-i", "eth0;reboot")))
}

func TestRunRejectsAdapterDescription(t *testing.T) {
	// -i takes the device name; descriptions are shown by "devices" only.
	assert.Equal(t, 1, run(append(baseArgs(t), "-i", "Intel(R) Ethernet Connection")))
}

func TestRunRejectsBadForwardURL(t *testing.T) {
	assert.Equal(t, 1, run(append(baseArgs(t), "-forward", "http://example.com")))
}

func TestRunMissingReplayFile(t *testing.T) {
	assert.Equal(t, 1, run(append(baseArgs(t), "-r", filepath.Join(t.TempDir(), "missing.pcap"))))
}

func TestRunUnknownFlag(t *testing.T) {
	assert.Equal(t, 2, run([]string{"-bogus"}))
}
