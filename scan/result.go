package scan

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// PortResult is what is kept of a single open port observation.
type PortResult struct {
	Reason string `json:"reason"`
	Status string `json:"status"`
}

// HostPorts maps "<port>/<proto>" keys to their result.
type HostPorts map[string]PortResult

// Results maps an IP address to the ports observed on it.
type Results map[string]HostPorts

func PortKey(port int, proto string) string {
	return fmt.Sprintf("%d/%s", port, proto)
}

// SplitPortKey is the inverse of PortKey.
func SplitPortKey(key string) (int, string, error) {
	number, proto, ok := strings.Cut(key, "/")
	if !ok || proto == "" {
		return 0, "", fmt.Errorf("invalid port key '%s'", key)
	}
	port, err := strconv.Atoi(number)
	if err != nil {
		return 0, "", fmt.Errorf("invalid port key '%s': %w", key, err)
	}
	return port, proto, nil
}

// Merge adds ports to the host's map. Later values win on key collisions.
func (r Results) Merge(ip string, ports HostPorts) {
	existing, ok := r[ip]
	if !ok {
		existing = HostPorts{}
		r[ip] = existing
	}
	for key, result := range ports {
		existing[key] = result
	}
}

// IPs returns the scanned addresses in lexical order.
func (r Results) IPs() []string {
	ips := make([]string, 0, len(r))
	for ip := range r {
		ips = append(ips, ip)
	}
	sort.Strings(ips)
	return ips
}

// Keys returns the port keys sorted by port number, then protocol.
func (h HostPorts) Keys() []string {
	keys := make([]string, 0, len(h))
	for key := range h {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		pi, protoI, errI := SplitPortKey(keys[i])
		pj, protoJ, errJ := SplitPortKey(keys[j])
		if errI != nil || errJ != nil {
			return keys[i] < keys[j]
		}
		if pi != pj {
			return pi < pj
		}
		return protoI < protoJ
	})
	return keys
}

func (h HostPorts) String() string {
	parts := make([]string, 0, len(h))
	for _, key := range h.Keys() {
		port, _, _ := SplitPortKey(key)
		if service := DescribePort(port); service != "" {
			parts = append(parts, fmt.Sprintf("%s (%s)", key, service))
			continue
		}
		parts = append(parts, key)
	}
	return strings.Join(parts, ", ")
}
