//go:build !linux && !windows

package security

import "fmt"

// machineGUIDSource is unavailable on this platform; the HWID is built
// from the remaining fact sources.
type machineGUIDSource struct{}

func (machineGUIDSource) Name() string { return "machine_guid" }

func (machineGUIDSource) Value() (string, error) {
	return "", fmt.Errorf("machine guid not supported on this platform")
}
