// Package output persists normalized scan results, one JSON file per host.
package output

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/liamg/stormscan/inventory"
	"github.com/liamg/stormscan/scan"
	"github.com/sirupsen/logrus"
)

// Resolver is satisfied by *net.Resolver.
type Resolver interface {
	LookupAddr(ctx context.Context, addr string) ([]string, error)
}

// Written describes a persisted host record.
type Written struct {
	IP    string
	Name  string
	Path  string
	Ports scan.HostPorts
}

type Writer struct {
	dir      string
	resolve  bool
	resolver Resolver
	log      logrus.FieldLogger
}

func NewWriter(dir string, resolve bool, resolver Resolver, log logrus.FieldLogger) *Writer {
	return &Writer{
		dir:      dir,
		resolve:  resolve,
		resolver: resolver,
		log:      log,
	}
}

// Name is the file name stem for ip: its fully qualified name when resolution is
// enabled and succeeds, the address itself otherwise.
func (w *Writer) Name(ctx context.Context, ip string) string {
	if !w.resolve || w.resolver == nil {
		return ip
	}

	names, err := w.resolver.LookupAddr(ctx, ip)
	if err != nil {
		w.log.WithField("ip", ip).Warnf("Failed to resolve: %s", err)
		return ip
	}

	var first string
	for _, name := range names {
		name = strings.TrimSuffix(name, ".")
		if name == "" || strings.ContainsAny(name, `/\`) {
			continue
		}
		if strings.Contains(name, ".") {
			return name
		}
		if first == "" {
			first = name
		}
	}
	if first == "" {
		w.log.WithField("ip", ip).Warn("Failed to resolve: no usable name")
		return ip
	}
	return first
}

// Write stores one host record at <dir>/<name>.json, replacing any existing file.
// Keys are sorted and indented by two spaces; inventory metadata is merged in when known.
func (w *Writer) Write(ctx context.Context, ip string, ports scan.HostPorts, inv inventory.Inventory) (Written, error) {

	record := make(map[string]interface{}, len(ports)+2)
	for key, result := range ports {
		record[key] = result
	}
	if host, ok := inv.Lookup(ip); ok {
		record["project"] = host.Project
		record["name"] = host.Name
	}

	data, err := encode(record)
	if err != nil {
		return Written{}, fmt.Errorf("encoding record for %s: %w", ip, err)
	}

	name := w.Name(ctx, ip)
	path := filepath.Join(w.dir, name+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Written{}, fmt.Errorf("writing record for %s: %w", ip, err)
	}

	w.log.WithField("ip", ip).Debugf("Wrote %s", path)

	return Written{IP: ip, Name: name, Path: path, Ports: ports}, nil
}

// WriteAll persists every host in address order. Files written before a failure stay on disk.
func (w *Writer) WriteAll(ctx context.Context, results scan.Results, inv inventory.Inventory) ([]Written, error) {
	written := make([]Written, 0, len(results))
	for _, ip := range results.IPs() {
		record, err := w.Write(ctx, ip, results[ip], inv)
		if err != nil {
			return written, err
		}
		written = append(written, record)
	}
	return written, nil
}

// encode renders record with sorted keys, two-space indentation and a trailing
// newline. '<', '>' and '&' are written as is.
func encode(record map[string]interface{}) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(record); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
