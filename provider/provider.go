// Package provider creates and removes the short-lived machines that scans run on.
package provider

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when the named instance or key does not exist. Delete
// paths treat it as "already gone".
var ErrNotFound = errors.New("not found")

// Instance is a provisioned machine.
type Instance struct {
	Name       string
	PublicIPv4 string
	CreatedAt  time.Time
	Labels     map[string]string
}

type CreateOpts struct {
	Name     string
	Type     string
	Image    string
	Location string
	SSHKeys  []string
	Labels   map[string]string
}

type Provider interface {
	// CreateInstance blocks until the machine is provisioned. If the machine was
	// created but provisioning then failed, both the instance and the error are returned.
	CreateInstance(ctx context.Context, opts CreateOpts) (*Instance, error)
	DeleteInstance(ctx context.Context, name string) error
	ListInstances(ctx context.Context) ([]Instance, error)
	RegisterKey(ctx context.Context, name, publicKey string) error
	DeregisterKey(ctx context.Context, name string) error
}
