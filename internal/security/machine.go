// Package security derives the stable machine identity that licenses are
// bound to. The HWID is a hash over whatever stable facts the current
// platform can provide; a fact source that is unavailable simply
// contributes nothing instead of failing the collection.
package security

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

// MachineInfo identifies the current machine for license binding.
type MachineInfo struct {
	HWID     string `json:"hwid"`
	Hostname string `json:"hostname"`
	Platform string `json:"platform"`
	AppVer   string `json:"app_ver"`
}

// FactSource supplies one stable machine fact. Implementations report
// ErrFactUnavailable (or any error) when the platform cannot provide the
// fact; the collector then omits it from the HWID input.
type FactSource interface {
	Name() string
	Value() (string, error)
}

// Collector gathers machine facts and produces a deterministic HWID.
type Collector struct {
	sources []FactSource
	logger  *slog.Logger

	mu          sync.RWMutex
	cache       *MachineInfo
	cacheExpiry time.Time
	cacheTTL    time.Duration
}

// NewCollector creates a collector with the default fact sources for the
// running platform.
func NewCollector(logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		sources: []FactSource{
			machineGUIDSource{},
			macAddressSource{},
			hostnameSource{},
			platformSource{},
		},
		logger:   logger.With(slog.String("component", "security.collector")),
		cacheTTL: time.Hour,
	}
}

// NewCollectorWithSources creates a collector with explicit fact sources.
// Tests use this to pin the HWID input.
func NewCollectorWithSources(logger *slog.Logger, sources ...FactSource) *Collector {
	c := NewCollector(logger)
	c.sources = sources
	return c
}

// Collect produces MachineInfo for the current machine. The result is
// cached for a short period; the HWID is stable across calls as long as
// the underlying facts do not change.
func (c *Collector) Collect(appVersion string) MachineInfo {
	c.mu.RLock()
	if c.cache != nil && time.Now().Before(c.cacheExpiry) {
		info := *c.cache
		c.mu.RUnlock()
		info.AppVer = appVersion
		return info
	}
	c.mu.RUnlock()

	var parts []string
	for _, src := range c.sources {
		value, err := src.Value()
		if err != nil || value == "" {
			c.logger.Debug("machine fact unavailable",
				slog.String("fact", src.Name()),
			)
			continue
		}
		parts = append(parts, value)
	}

	raw := strings.Join(parts, "|")
	sum := sha256.Sum256([]byte(raw))
	hwid := strings.ToUpper(hex.EncodeToString(sum[:]))[:32]

	info := MachineInfo{
		HWID:     hwid,
		Hostname: currentHostname(),
		Platform: platformString(),
		AppVer:   appVersion,
	}

	c.mu.Lock()
	c.cache = &info
	c.cacheExpiry = time.Now().Add(c.cacheTTL)
	c.mu.Unlock()

	c.logger.Debug("machine identity collected",
		slog.String("hwid", hwid),
		slog.String("hostname", info.Hostname),
		slog.String("platform", info.Platform),
		slog.Int("fact_count", len(parts)),
	)

	return info
}

// ClearCache drops the cached identity.
func (c *Collector) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = nil
	c.cacheExpiry = time.Time{}
}

// macAddressSource contributes the primary network adapter hardware
// address.
type macAddressSource struct{}

func (macAddressSource) Name() string { return "mac_address" }

func (macAddressSource) Value() (string, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("failed to list network interfaces: %w", err)
	}

	// Prefer an up, non-loopback interface.
	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		if mac := iface.HardwareAddr.String(); mac != "" && mac != "00:00:00:00:00:00" {
			return mac, nil
		}
	}

	// Fallback: any interface with a hardware address.
	for _, iface := range interfaces {
		if mac := iface.HardwareAddr.String(); mac != "" && mac != "00:00:00:00:00:00" {
			return mac, nil
		}
	}

	return "", fmt.Errorf("no usable hardware address found")
}

// hostnameSource contributes the machine hostname.
type hostnameSource struct{}

func (hostnameSource) Name() string { return "hostname" }

func (hostnameSource) Value() (string, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("failed to get hostname: %w", err)
	}
	hostname = strings.TrimSpace(hostname)
	if hostname == "" {
		return "", fmt.Errorf("hostname is empty")
	}
	return hostname, nil
}

// platformSource contributes the OS/architecture identifier.
type platformSource struct{}

func (platformSource) Name() string { return "platform" }

func (platformSource) Value() (string, error) {
	return platformString(), nil
}

func platformString() string {
	return fmt.Sprintf("%s %s", runtime.GOOS, runtime.GOARCH)
}

func currentHostname() string {
	hostname, err := os.Hostname()
	if err != nil || strings.TrimSpace(hostname) == "" {
		return "unknown-host"
	}
	return strings.TrimSpace(hostname)
}
