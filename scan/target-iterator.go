package scan

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"net"
	"strings"
)

// TargetIterator walks the addresses covered by a single target entry: a literal
// IP address, a CIDR range or an inclusive IPv4 range written "a.b.c.d-e.f.g.h".
// Hostnames are rejected: the remote scanner only accepts addresses.
type TargetIterator struct {
	target  string
	isCIDR  bool
	isRange bool
	done    bool
	ip      net.IP
	last    net.IP
	ipnet   *net.IPNet
}

func NewTargetIterator(target string) *TargetIterator {

	target = strings.TrimSpace(target)
	ip, ipnet, err := net.ParseCIDR(target)

	ti := &TargetIterator{
		target: target,
		isCIDR: err == nil,
	}

	switch {
	case ti.isCIDR:
		ti.ip = ip.Mask(ipnet.Mask)
		ti.ipnet = ipnet
	case strings.Contains(target, "-"):
		first, last, _ := strings.Cut(target, "-")
		start := net.ParseIP(strings.TrimSpace(first)).To4()
		end := net.ParseIP(strings.TrimSpace(last)).To4()
		if start != nil && end != nil && bytes.Compare(start, end) <= 0 {
			ti.isRange = true
			ti.ip = start
			ti.last = end
		}
	default:
		ti.ip = net.ParseIP(target)
		if v4 := ti.ip.To4(); v4 != nil {
			ti.ip = v4
		}
	}

	return ti
}

// Peek returns the next address without advancing.
func (ti *TargetIterator) Peek() (net.IP, error) {

	if ti.ip == nil {
		return nil, fmt.Errorf("invalid target '%s': not an IP address, CIDR range or address range", ti.target)
	}

	if ti.done {
		return nil, io.EOF
	}

	if ti.isCIDR && !ti.ipnet.Contains(ti.ip) {
		return nil, io.EOF
	}
	if ti.isRange && bytes.Compare(ti.ip, ti.last) > 0 {
		return nil, io.EOF
	}

	tIP := make([]byte, len(ti.ip))
	copy(tIP, ti.ip)
	return tIP, nil
}

func (ti *TargetIterator) next() (net.IP, error) {

	ip, err := ti.Peek()
	if err != nil {
		return nil, err
	}

	if ti.isCIDR || ti.isRange {
		ti.incrementIP()
	} else {
		ti.done = true
	}

	return ip, nil
}

// Size is the number of addresses the target covers, saturating at math.MaxUint64.
func (ti *TargetIterator) Size() uint64 {
	switch {
	case ti.ip == nil:
		return 0
	case ti.isRange:
		return uint64(ipv4ToUint32(ti.last)) - uint64(ipv4ToUint32(ti.ip)) + 1
	case !ti.isCIDR:
		return 1
	}
	ones, bits := ti.ipnet.Mask.Size()
	if bits-ones >= 64 {
		return math.MaxUint64
	}
	return uint64(1) << uint(bits-ones)
}

func ipv4ToUint32(ip net.IP) uint32 {
	return uint32(ip[0])<<24 | uint32(ip[1])<<16 | uint32(ip[2])<<8 | uint32(ip[3])
}

func (ti *TargetIterator) incrementIP() {
	for j := len(ti.ip) - 1; j >= 0; j-- {
		ti.ip[j]++
		if ti.ip[j] > 0 {
			return
		}
	}
	// wrapped past the last address of the space
	ti.done = true
}
