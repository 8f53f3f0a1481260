//go:build windows

package security

import (
	"fmt"

	"golang.org/x/sys/windows/registry"
)

// machineGUIDSource contributes the cryptography MachineGuid, which
// survives reboots but not OS reinstalls.
type machineGUIDSource struct{}

func (machineGUIDSource) Name() string { return "machine_guid" }

func (machineGUIDSource) Value() (string, error) {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, `SOFTWARE\Microsoft\Cryptography`, registry.QUERY_VALUE|registry.WOW64_64KEY)
	if err != nil {
		return "", fmt.Errorf("failed to open cryptography registry key: %w", err)
	}
	defer key.Close()

	guid, _, err := key.GetStringValue("MachineGuid")
	if err != nil {
		return "", fmt.Errorf("failed to read MachineGuid: %w", err)
	}
	return guid, nil
}
