package collect_logs

import (
	"archive/zip"
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"EnigmaNetz/Enigma-Capture/internal/capture"
	"EnigmaNetz/Enigma-Capture/internal/version"
)

// Sources names what goes into a support bundle. Missing paths are skipped.
type Sources struct {
	// LogDir holds the current and rotated log files.
	LogDir string
	// ConfigPath is stored as config.json.
	ConfigPath string
	// Captures are saved pcap files or directories of them.
	Captures []string
	// Catalog lists the capture devices for devices.txt. Nil skips the listing.
	Catalog capture.Catalog
}

// CollectLogs creates a zip archive with logs, saved captures, config,
// version, capture devices and system info for diagnostics.
// zipName is the output file name (e.g., "enigma-capture-logs-YYYYMMDD-HHMMSS.zip").
func CollectLogs(zipName string, src Sources) error {
	zipFile, err := os.Create(zipName)
	if err != nil {
		return fmt.Errorf("failed to create zip: %w", err)
	}
	defer zipFile.Close()

	zipWriter := zip.NewWriter(zipFile)

	if src.LogDir != "" {
		_ = addDirToZip(zipWriter, src.LogDir, "logs") // logs may not exist yet
	}

	for _, p := range src.Captures {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		if info.IsDir() {
			_ = addDirToZip(zipWriter, p, filepath.Join("captures", filepath.Base(p)))
		} else {
			_ = addFileToZip(zipWriter, p, filepath.Join("captures", filepath.Base(p)))
		}
	}

	if src.ConfigPath != "" {
		if _, err := os.Stat(src.ConfigPath); err == nil {
			_ = addFileToZip(zipWriter, src.ConfigPath, "config.json")
		}
	}

	_ = addStringToZip(zipWriter, "version.txt", version.Version+"\n")
	if src.Catalog != nil {
		_ = addStringToZip(zipWriter, "devices.txt", deviceListing(src.Catalog))
	}
	_ = addStringToZip(zipWriter, "system-info.txt", getSystemInfo())

	if err := zipWriter.Close(); err != nil {
		return fmt.Errorf("failed to finish zip: %w", err)
	}
	return nil
}

func deviceListing(c capture.Catalog) string {
	devices, err := c.ListDevices()
	if err != nil {
		return fmt.Sprintf("error listing devices: %v\n", err)
	}
	var b strings.Builder
	for _, d := range devices {
		b.WriteString(d.Label())
		b.WriteString("\n")
	}
	return b.String()
}

func addFileToZip(zipWriter *zip.Writer, filename, name string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	w, err := zipWriter.Create(filepath.ToSlash(name))
	if err != nil {
		return err
	}
	_, err = io.Copy(w, file)
	return err
}

func addStringToZip(zipWriter *zip.Writer, filename, content string) error {
	w, err := zipWriter.Create(filename)
	if err != nil {
		return err
	}
	_, err = w.Write([]byte(content))
	return err
}

// addDirToZip stores every file under dir beneath prefix in the archive.
func addDirToZip(zipWriter *zip.Writer, dir, prefix string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		return addFileToZip(zipWriter, path, filepath.Join(prefix, rel))
	})
}

func getSystemInfo() string {
	var b strings.Builder
	fmt.Fprintf(&b, "OS: %s\nArch: %s\nGo version: %s\nNumCPU: %d\n", runtime.GOOS, runtime.GOARCH, runtime.Version(), runtime.NumCPU())
	if hn, err := os.Hostname(); err == nil {
		fmt.Fprintf(&b, "Hostname: %s\n", hn)
	}

	switch runtime.GOOS {
	case "linux":
		if f, err := os.Open("/etc/os-release"); err == nil {
			defer f.Close()
			b.WriteString("/etc/os-release:\n")
			scanner := bufio.NewScanner(f)
			for scanner.Scan() {
				line := scanner.Text()
				if strings.HasPrefix(line, "NAME=") || strings.HasPrefix(line, "VERSION=") || strings.HasPrefix(line, "PRETTY_NAME=") {
					b.WriteString("  " + line + "\n")
				}
			}
		}
		if out, err := exec.Command("uname", "-r").Output(); err == nil {
			b.WriteString("Kernel: " + strings.TrimSpace(string(out)) + "\n")
		}
	case "darwin":
		if out, err := exec.Command("sw_vers").Output(); err == nil {
			b.WriteString("sw_vers:\n")
			b.WriteString(string(out))
		}
	case "windows":
		if out, err := exec.Command("cmd", "/C", "ver").Output(); err == nil {
			b.WriteString("ver: " + strings.TrimSpace(string(out)) + "\n")
		}
	}
	return b.String()
}
