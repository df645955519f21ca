package scan

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"strings"
)

// Targets is a validated scanner target list: one IP address, CIDR range or
// address range per entry.
type Targets []string

// ParseTargets reads one target per line. Blank lines and lines starting with '#'
// are ignored; anything else must be an IP address, a CIDR range or an IPv4
// range such as 10.0.0.1-10.0.0.9.
func ParseTargets(r io.Reader) (Targets, error) {
	var targets Targets

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		entry := strings.TrimSpace(scanner.Text())
		if entry == "" || strings.HasPrefix(entry, "#") {
			continue
		}
		if _, err := NewTargetIterator(entry).Peek(); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		targets = append(targets, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return targets, nil
}

// Addresses counts the addresses covered by all entries, saturating at math.MaxUint64.
func (t Targets) Addresses() uint64 {
	var total uint64
	for _, entry := range t {
		size := NewTargetIterator(entry).Size()
		if total > math.MaxUint64-size {
			return math.MaxUint64
		}
		total += size
	}
	return total
}

// Bytes renders the list in the scanner's input format, one entry per line.
func (t Targets) Bytes() []byte {
	var buf bytes.Buffer
	for _, entry := range t {
		buf.WriteString(entry)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}
