// Package inventory maps the public addresses of every server in a set of
// provider accounts to the project and server name they belong to.
package inventory

import (
	"context"
	"fmt"
	"sort"

	"github.com/liamg/stormscan/config"
	"github.com/liamg/stormscan/failure"
	"github.com/liamg/stormscan/provider"
	"github.com/liamg/stormscan/scan"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 4

// Host is the metadata merged into a scan record.
type Host struct {
	Project string `json:"project"`
	Name    string `json:"name"`
}

// Inventory is keyed by IPv4 address.
type Inventory map[string]Host

// Lookup returns the host for ip, if known. A nil inventory knows nothing.
func (inv Inventory) Lookup(ip string) (Host, bool) {
	host, ok := inv[ip]
	return host, ok
}

// Targets lists the inventory's addresses in order, one scanner target each.
func (inv Inventory) Targets() scan.Targets {
	targets := make(scan.Targets, 0, len(inv))
	for ip := range inv {
		targets = append(targets, ip)
	}
	sort.Strings(targets)
	return targets
}

// ProviderFactory returns a provider client authenticated with token.
type ProviderFactory func(token string) provider.Provider

type Builder struct {
	factory     ProviderFactory
	log         logrus.FieldLogger
	concurrency int
}

func NewBuilder(factory ProviderFactory, log logrus.FieldLogger) *Builder {
	return &Builder{
		factory:     factory,
		log:         log,
		concurrency: defaultConcurrency,
	}
}

// Build enumerates the accounts concurrently. When two accounts report the same
// address, the account listed later wins.
func (b *Builder) Build(ctx context.Context, accounts []config.Account) (Inventory, error) {

	listed := make([][]provider.Instance, len(accounts))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(b.concurrency)

	for i, account := range accounts {
		i, account := i, account
		group.Go(func() error {
			b.log.WithField("project", account.Name).Info("Scanning project")
			instances, err := b.factory(account.Token).ListInstances(groupCtx)
			if err != nil {
				return failure.Provision(fmt.Sprintf("listing servers of project %s", account.Name), err)
			}
			listed[i] = instances
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	inv := Inventory{}
	for i, account := range accounts {
		for _, instance := range listed[i] {
			if instance.PublicIPv4 == "" {
				b.log.WithField("project", account.Name).Warnf("Server %s does not have primary ipv4", instance.Name)
				continue
			}
			inv[instance.PublicIPv4] = Host{
				Project: account.Name,
				Name:    instance.Name,
			}
		}
	}

	return inv, nil
}
