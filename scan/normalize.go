package scan

import (
	"encoding/json"
	"strings"

	"github.com/liamg/stormscan/failure"
	"github.com/sirupsen/logrus"
)

// masscan writes its JSON output as a stream of objects with a trailing comma
// before the closing bracket, so the document has to be repaired before parsing.

type rawEvent struct {
	IP    string            `json:"ip"`
	Ports []json.RawMessage `json:"ports"`
}

type rawPort struct {
	Port   *int   `json:"port"`
	Proto  string `json:"proto"`
	Reason string `json:"reason"`
	Status string `json:"status"`
}

type Normalizer struct {
	log logrus.FieldLogger
}

func NewNormalizer(log logrus.FieldLogger) *Normalizer {
	return &Normalizer{log: log}
}

// Normalize parses raw scanner output into per-host port maps. An output with no
// content yields empty results. A document that cannot be parsed as a whole yields
// a parse error and no results; individual malformed port entries are skipped.
func (n *Normalizer) Normalize(raw []byte) (Results, error) {

	document := repair(string(raw))
	if document == "" {
		return Results{}, nil
	}

	var events []rawEvent
	if err := json.Unmarshal([]byte(document), &events); err != nil {
		return nil, failure.Parse("decoding scanner output", err)
	}

	results := Results{}
	for i, event := range events {
		if event.IP == "" {
			n.log.WithField("event", i).Warn("Skipping scanner event without an ip")
			continue
		}
		ports := HostPorts{}
		for j, entry := range event.Ports {
			var port rawPort
			if err := json.Unmarshal(entry, &port); err != nil {
				n.log.WithField("ip", event.IP).WithField("entry", j).Warnf("Skipping malformed port entry: %s", err)
				continue
			}
			if port.Port == nil || port.Proto == "" {
				n.log.WithField("ip", event.IP).WithField("entry", j).Warn("Skipping port entry without port or proto")
				continue
			}
			ports[PortKey(*port.Port, port.Proto)] = PortResult{
				Reason: port.Reason,
				Status: port.Status,
			}
		}
		results.Merge(event.IP, ports)
	}

	return results, nil
}

// repair strips all whitespace, drops any trailing run of ',' and ']' characters and
// re-closes the array. Empty input stays empty.
func repair(raw string) string {
	compact := strings.Join(strings.Fields(raw), "")
	if compact == "" {
		return ""
	}
	return strings.TrimRight(compact, ",]") + "]"
}
