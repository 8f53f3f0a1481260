//go:build linux

package security

import (
	"fmt"
	"os"
	"strings"
)

// machineGUIDSource contributes the systemd machine id, which survives
// reboots but not OS reinstalls.
type machineGUIDSource struct{}

func (machineGUIDSource) Name() string { return "machine_guid" }

func (machineGUIDSource) Value() (string, error) {
	for _, path := range []string{"/etc/machine-id", "/var/lib/dbus/machine-id"} {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("machine id not readable")
}
