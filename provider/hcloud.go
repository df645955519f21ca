package provider

import (
	"context"
	"fmt"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
	"github.com/liamg/stormscan/version"
	"github.com/sirupsen/logrus"
)

// HCloud talks to the Hetzner Cloud API.
type HCloud struct {
	client *hcloud.Client
	log    logrus.FieldLogger
}

var _ Provider = (*HCloud)(nil)

func NewHCloud(token string, log logrus.FieldLogger, opts ...hcloud.ClientOption) *HCloud {
	v := version.Version
	if v == "" {
		v = "development"
	}
	opts = append([]hcloud.ClientOption{
		hcloud.WithToken(token),
		hcloud.WithApplication("stormscan", v),
	}, opts...)

	return &HCloud{
		client: hcloud.NewClient(opts...),
		log:    log,
	}
}

func (p *HCloud) CreateInstance(ctx context.Context, opts CreateOpts) (*Instance, error) {

	keys := make([]*hcloud.SSHKey, 0, len(opts.SSHKeys))
	for _, name := range opts.SSHKeys {
		key, _, err := p.client.SSHKey.GetByName(ctx, name)
		if err != nil {
			return nil, translate(err)
		}
		if key == nil {
			return nil, fmt.Errorf("ssh key %s: %w", name, ErrNotFound)
		}
		keys = append(keys, key)
	}

	createOpts := hcloud.ServerCreateOpts{
		Name:       opts.Name,
		ServerType: &hcloud.ServerType{Name: opts.Type},
		Image:      &hcloud.Image{Name: opts.Image},
		SSHKeys:    keys,
		Labels:     opts.Labels,
	}
	if opts.Location != "" {
		createOpts.Location = &hcloud.Location{Name: opts.Location}
	}

	p.log.WithField("server", opts.Name).Debugf("Creating server of type %s from image %s", opts.Type, opts.Image)

	result, _, err := p.client.Server.Create(ctx, createOpts)
	if err != nil {
		return nil, translate(err)
	}

	created := toInstance(result.Server)

	actions := append([]*hcloud.Action{result.Action}, result.NextActions...)
	if err := p.client.Action.WaitFor(ctx, actions...); err != nil {
		return created, fmt.Errorf("waiting for server %s: %w", opts.Name, translate(err))
	}

	server, _, err := p.client.Server.GetByID(ctx, result.Server.ID)
	if err != nil {
		return created, translate(err)
	}
	if server == nil {
		return created, fmt.Errorf("server %s: %w", opts.Name, ErrNotFound)
	}

	return toInstance(server), nil
}

func (p *HCloud) DeleteInstance(ctx context.Context, name string) error {
	server, _, err := p.client.Server.GetByName(ctx, name)
	if err != nil {
		return translate(err)
	}
	if server == nil {
		return fmt.Errorf("server %s: %w", name, ErrNotFound)
	}

	p.log.WithField("server", name).Info("Deleting server")

	if _, _, err := p.client.Server.DeleteWithResult(ctx, server); err != nil {
		return translate(err)
	}
	return nil
}

func (p *HCloud) ListInstances(ctx context.Context) ([]Instance, error) {
	servers, err := p.client.Server.All(ctx)
	if err != nil {
		return nil, translate(err)
	}

	instances := make([]Instance, 0, len(servers))
	for _, server := range servers {
		instances = append(instances, *toInstance(server))
	}
	return instances, nil
}

func (p *HCloud) RegisterKey(ctx context.Context, name, publicKey string) error {
	p.log.WithField("key", name).Debug("Registering ssh key")

	_, _, err := p.client.SSHKey.Create(ctx, hcloud.SSHKeyCreateOpts{
		Name:      name,
		PublicKey: publicKey,
	})
	return translate(err)
}

func (p *HCloud) DeregisterKey(ctx context.Context, name string) error {
	key, _, err := p.client.SSHKey.GetByName(ctx, name)
	if err != nil {
		return translate(err)
	}
	if key == nil {
		return fmt.Errorf("ssh key %s: %w", name, ErrNotFound)
	}

	p.log.WithField("key", name).Debug("Deleting ssh key")

	_, err = p.client.SSHKey.Delete(ctx, key)
	return translate(err)
}

func toInstance(server *hcloud.Server) *Instance {
	instance := &Instance{
		Name:      server.Name,
		CreatedAt: server.Created,
		Labels:    server.Labels,
	}
	if ip := server.PublicNet.IPv4.IP; ip != nil && !ip.IsUnspecified() {
		instance.PublicIPv4 = ip.String()
	}
	return instance
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if hcloud.IsError(err, hcloud.ErrorCodeNotFound) {
		return fmt.Errorf("%s: %w", err, ErrNotFound)
	}
	return err
}
