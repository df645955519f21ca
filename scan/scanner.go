package scan

import (
	"fmt"
	"strings"
)

// Fixed locations and settings of the remote scan. The remote command line built
// from these must stay stable: results are compared across runs.
const (
	RemoteTargetsPath = "/tmp/targets.list"
	RemoteOutputPath  = "/tmp/output.json"
	Rate              = 10000
	PortRange         = "1-65535"
)

// NoBannerTCPPorts are excluded from banner grabbing.
var NoBannerTCPPorts = []int{80, 443, 8080}

// Packages installed on the scan host.
var BootstrapPackages = []string{"masscan", "nmap"}

// ProbeCommand is the liveness check run against a fresh host.
func ProbeCommand() string {
	return "hostname ; whoami ; id"
}

func BootstrapCommand() string {
	return "export DEBIAN_FRONTEND=noninteractive; " +
		"apt-get update && " +
		"apt-get install --no-install-recommends -yy " +
		strings.Join(BootstrapPackages, " ") + ";"
}

func MasscanCommand() string {
	ports := make([]string, len(NoBannerTCPPorts))
	for i, port := range NoBannerTCPPorts {
		ports[i] = fmt.Sprintf("%d", port)
	}

	return fmt.Sprintf(
		`export NOBANNER_TCP_PORTS="[%s]"; masscan -iL %s --open-only -oJ %s --rate %d -p %s -p U:%s`,
		strings.Join(ports, ", "),
		RemoteTargetsPath,
		RemoteOutputPath,
		Rate,
		PortRange,
		PortRange,
	)
}
