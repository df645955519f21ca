// Package session drives one scan session: it provisions a scan host, runs the
// scanner on it, collects and persists the results and tears everything down.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/liamg/stormscan/config"
	"github.com/liamg/stormscan/failure"
	"github.com/liamg/stormscan/inventory"
	"github.com/liamg/stormscan/journal"
	"github.com/liamg/stormscan/output"
	"github.com/liamg/stormscan/provider"
	"github.com/liamg/stormscan/remote"
	"github.com/liamg/stormscan/scan"
	"github.com/sirupsen/logrus"
)

const (
	namePrefix            = "masscan-"
	defaultCleanupTimeout = 5 * time.Minute
	defaultProbeTimeout   = 30 * time.Second
	managedByLabel        = "managed-by"
	managedByValue        = "masscan-as-a-service"
)

// errNothingToScan ends a session early, successfully, before anything is provisioned.
var errNothingToScan = errors.New("nothing to scan")

// Recorder receives the journaled state of the session after every transition.
type Recorder interface {
	Record(ctx context.Context, entry journal.Entry) error
}

// Report summarises a finished session.
type Report struct {
	ID        string
	Targets   scan.Targets
	Inventory inventory.Inventory
	Results   scan.Results
	Written   []output.Written
	// LastState is the last state entered before Cleanup: Persisting on success,
	// the failing state otherwise.
	LastState State
}

type Orchestrator struct {
	cfg            config.Session
	provider       provider.Provider
	dialer         remote.Dialer
	inventory      *inventory.Builder
	resolver       output.Resolver
	recorder       Recorder
	log            logrus.FieldLogger
	newID          func() string
	now            func() time.Time
	sleep          func(context.Context, time.Duration) error
	cleanupTimeout time.Duration
	probeTimeout   time.Duration
}

type Option func(*Orchestrator)

// WithInventoryBuilder is required when the session targets provider accounts.
func WithInventoryBuilder(builder *inventory.Builder) Option {
	return func(o *Orchestrator) {
		o.inventory = builder
	}
}

func WithResolver(resolver output.Resolver) Option {
	return func(o *Orchestrator) {
		o.resolver = resolver
	}
}

func WithRecorder(recorder Recorder) Option {
	return func(o *Orchestrator) {
		o.recorder = recorder
	}
}

func WithCleanupTimeout(timeout time.Duration) Option {
	return func(o *Orchestrator) {
		o.cleanupTimeout = timeout
	}
}

func New(cfg config.Session, p provider.Provider, dialer remote.Dialer, log logrus.FieldLogger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:            cfg,
		provider:       p,
		dialer:         dialer,
		log:            log,
		newID:          func() string { return namePrefix + uuid.NewString() },
		now:            time.Now,
		sleep:          sleepContext,
		cleanupTimeout: defaultCleanupTimeout,
		probeTimeout:   defaultProbeTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// run holds everything one session acquires and produces.
type run struct {
	id           string
	log          logrus.FieldLogger
	entry        journal.Entry
	cleanup      cleanupStack
	tempDir      string
	localTargets string
	targets      scan.Targets
	inventory    inventory.Inventory
	instance     *provider.Instance
	session      remote.Session
	raw          []byte
	results      scan.Results
	written      []output.Written
}

type step struct {
	state State
	fn    func(context.Context, *run) error
}

// Run executes the session to completion. Whatever happens, every resource the
// session acquired is released before Run returns. The returned error is the
// failure of the first step that failed; cleanup failures are only reported when
// nothing else went wrong.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {

	id := o.newID()
	r := &run{
		id:  id,
		log: o.log.WithField("session", id),
		entry: journal.Entry{
			ID:        id,
			StartedAt: o.now(),
		},
	}

	steps := []step{
		{Initializing, o.initialize},
		{Provisioning, o.provision},
		{AwaitingReady, o.awaitReady},
		{Bootstrapping, o.bootstrap},
		{Uploading, o.upload},
		{Scanning, o.runScanner},
		{Downloading, o.download},
		{Normalizing, o.normalize},
		{Persisting, o.persist},
	}

	r.log.Info("Masscan summons to an existence")

	var (
		runErr error
		last   State
	)
	for _, s := range steps {
		last = s.state
		o.transition(ctx, r, s.state)
		if err := s.fn(ctx, r); err != nil {
			if errors.Is(err, errNothingToScan) {
				r.log.Warn("No targets to scan, ending session")
				break
			}
			runErr = fmt.Errorf("%s: %w", s.state, err)
			r.entry.Error = runErr.Error()
			o.transition(ctx, r, Failed)
			r.log.WithError(err).Errorf("Session failed while %s", s.state)
			break
		}
	}

	// release resources even if ctx has been cancelled
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cleanupTimeout)
	defer cancel()

	o.transition(cleanupCtx, r, Cleanup)
	cleanupErr := r.cleanup.run(cleanupCtx, r.log)
	if cleanupErr != nil && runErr == nil {
		runErr = failure.Provision("cleanup", cleanupErr)
		r.entry.Error = runErr.Error()
	}

	r.entry.FinishedAt = o.now()
	o.transition(cleanupCtx, r, Terminated)

	return &Report{
		ID:        id,
		Targets:   r.targets,
		Inventory: r.inventory,
		Results:   r.results,
		Written:   r.written,
		LastState: last,
	}, runErr
}

func (o *Orchestrator) transition(ctx context.Context, r *run, state State) {
	r.entry.State = state.String()
	r.log.WithField("state", state.String()).Debug("Session state changed")
	if o.recorder == nil {
		return
	}
	if err := o.recorder.Record(ctx, r.entry); err != nil {
		r.log.WithError(err).Warn("Failed to journal session state")
	}
}

func (o *Orchestrator) initialize(ctx context.Context, r *run) error {

	var fromInventory bool

	switch {
	case o.cfg.TargetFile != "" && len(o.cfg.Accounts) > 0:
		return failure.Config("resolving targets", errors.New("both a target file and accounts were given"))
	case o.cfg.TargetFile != "":
		f, err := os.Open(o.cfg.TargetFile)
		if err != nil {
			return failure.Config("reading targets", err)
		}
		targets, err := scan.ParseTargets(f)
		f.Close()
		if err != nil {
			return failure.Config(fmt.Sprintf("parsing %s", o.cfg.TargetFile), err)
		}
		r.targets = targets
	case len(o.cfg.Accounts) > 0:
		if o.inventory == nil {
			return failure.Config("resolving targets", errors.New("accounts given but no inventory builder configured"))
		}
		inv, err := o.inventory.Build(ctx, o.cfg.Accounts)
		if err != nil {
			return err
		}
		r.inventory = inv
		r.targets = inv.Targets()
		fromInventory = true
	default:
		return failure.Config("resolving targets", errors.New("neither a target file nor accounts were given"))
	}

	if len(r.targets) == 0 {
		if o.cfg.RequireTargets {
			if fromInventory {
				return failure.Config("resolving targets", errors.New("inventory contains no hosts"))
			}
			return failure.Config("resolving targets", fmt.Errorf("%s contains no targets", o.cfg.TargetFile))
		}
		return errNothingToScan
	}

	r.log.Infof("Resolved %d targets covering %d addresses", len(r.targets), r.targets.Addresses())

	dir, err := os.MkdirTemp("", "stormscan-")
	if err != nil {
		return fmt.Errorf("creating temp dir: %w", err)
	}
	r.tempDir = dir
	r.cleanup.push("remove "+dir, func(context.Context) error {
		return os.RemoveAll(dir)
	})

	r.localTargets = filepath.Join(dir, "targets.list")
	if err := os.WriteFile(r.localTargets, r.targets.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing targets: %w", err)
	}

	return nil
}

func (o *Orchestrator) provision(ctx context.Context, r *run) error {

	keyName := r.id
	if err := o.provider.RegisterKey(ctx, keyName, o.cfg.PublicKey); err != nil {
		return failure.Provision("registering ssh key", err)
	}
	r.entry.SSHKey = keyName
	r.cleanup.push("deregister ssh key "+keyName, func(ctx context.Context) error {
		return o.absentIsFine(r, o.provider.DeregisterKey(ctx, keyName))
	})

	instanceName := r.id
	r.log.Debugf("Creating VM %s", instanceName)
	instance, err := o.provider.CreateInstance(ctx, provider.CreateOpts{
		Name:     instanceName,
		Type:     o.cfg.Provider.VMModel,
		Image:    o.cfg.Provider.VMOSImage,
		Location: o.cfg.Provider.Location,
		SSHKeys:  []string{keyName},
		Labels:   map[string]string{managedByLabel: managedByValue},
	})
	if instance != nil {
		r.instance = instance
		r.entry.Instance = instance.Name
		r.cleanup.push("delete server "+instance.Name, func(ctx context.Context) error {
			return o.absentIsFine(r, o.provider.DeleteInstance(ctx, instance.Name))
		})
	}
	if err != nil {
		return failure.Provision("creating server", err)
	}
	if instance == nil || instance.PublicIPv4 == "" {
		return failure.Provision("creating server", errors.New("server has no public ipv4 address"))
	}

	r.log.WithField("ip", instance.PublicIPv4).Infof("Server %s is up", instance.Name)
	return nil
}

func (o *Orchestrator) absentIsFine(r *run, err error) error {
	if errors.Is(err, provider.ErrNotFound) {
		r.log.Debugf("Already absent: %s", err)
		return nil
	}
	return err
}

func (o *Orchestrator) awaitReady(ctx context.Context, r *run) error {

	ip := r.instance.PublicIPv4
	attempts := o.cfg.Readiness.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		r.log.Debugf("Trying to connect to %s (%d left)", ip, attempts-attempt)

		session, err := o.probe(ctx, ip)
		if err == nil {
			o.adopt(r, session)
			return nil
		}
		lastErr = err
		r.log.Infof("Worker %s not ready: %s", ip, err)

		if ctx.Err() != nil {
			return failure.Connectivity("waiting for "+ip, ctx.Err())
		}
		if attempt < attempts {
			if err := o.sleep(ctx, o.cfg.Readiness.Interval); err != nil {
				return failure.Connectivity("waiting for "+ip, err)
			}
		}
	}

	if o.cfg.Readiness.Strict {
		return failure.Connectivity(fmt.Sprintf("%s not ready after %d attempts", ip, attempts), lastErr)
	}

	r.log.Warnf("Worker %s not ready after %d attempts, continuing anyway", ip, attempts)
	return nil
}

// probe opens a session and checks that the host answers a trivial command
// within probeTimeout.
func (o *Orchestrator) probe(ctx context.Context, ip string) (remote.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, o.probeTimeout)
	defer cancel()

	session, err := o.dialer.Dial(ctx, ip, o.cfg.SSH.User, o.cfg.PrivateKeyPath)
	if err != nil {
		return nil, err
	}
	result, err := session.Run(ctx, scan.ProbeCommand())
	if err != nil {
		session.Close()
		return nil, err
	}
	if !result.OK() {
		session.Close()
		return nil, fmt.Errorf("probe exited with status %d", result.ExitStatus)
	}
	return session, nil
}

func (o *Orchestrator) adopt(r *run, session remote.Session) {
	r.session = session
	r.cleanup.push("close connection", func(context.Context) error {
		return session.Close()
	})
}

// connected makes sure there is an open session, dialling once if the readiness
// wait ended without one.
func (o *Orchestrator) connected(ctx context.Context, r *run) error {
	if r.session != nil {
		return nil
	}
	session, err := o.dialer.Dial(ctx, r.instance.PublicIPv4, o.cfg.SSH.User, o.cfg.PrivateKeyPath)
	if err != nil {
		return failure.Connectivity("connecting to "+r.instance.PublicIPv4, err)
	}
	o.adopt(r, session)
	return nil
}

// runCommand runs command under the configured execution timeout and requires a zero exit status.
func (o *Orchestrator) runCommand(ctx context.Context, r *run, op, command string) error {
	if timeout := o.cfg.Execution.CommandTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result, err := r.session.Run(ctx, command)
	if err != nil {
		return failure.RemoteCommand(op, err)
	}
	if !result.OK() {
		detail := strings.TrimSpace(result.Stderr)
		if detail == "" {
			detail = "no output"
		}
		return failure.RemoteCommand(op, fmt.Errorf("exit status %d: %s", result.ExitStatus, detail))
	}
	return nil
}

func (o *Orchestrator) bootstrap(ctx context.Context, r *run) error {
	if err := o.connected(ctx, r); err != nil {
		return err
	}
	return o.runCommand(ctx, r, "installing scanner", scan.BootstrapCommand())
}

func (o *Orchestrator) upload(ctx context.Context, r *run) error {
	if err := r.session.Upload(ctx, r.localTargets, scan.RemoteTargetsPath); err != nil {
		return failure.Transfer("uploading targets", err)
	}
	return nil
}

func (o *Orchestrator) runScanner(ctx context.Context, r *run) error {
	r.log.Infof("Scanning %d targets", len(r.targets))
	return o.runCommand(ctx, r, "running masscan", scan.MasscanCommand())
}

func (o *Orchestrator) download(ctx context.Context, r *run) error {
	local := filepath.Join(r.tempDir, "output.json")
	if err := r.session.Download(ctx, scan.RemoteOutputPath, local); err != nil {
		return failure.Transfer("downloading results", err)
	}
	raw, err := os.ReadFile(local)
	if err != nil {
		return failure.Transfer("reading downloaded results", err)
	}
	r.raw = raw
	return nil
}

func (o *Orchestrator) normalize(_ context.Context, r *run) error {
	results, err := scan.NewNormalizer(r.log).Normalize(r.raw)
	if err != nil {
		return err
	}
	r.results = results
	r.log.Infof("Scanner reported %d hosts", len(results))
	return nil
}

func (o *Orchestrator) persist(ctx context.Context, r *run) error {
	if len(r.results) == 0 {
		r.log.Info("Nothing to persist")
		return nil
	}

	writer := output.NewWriter(o.cfg.OutputDir, o.cfg.Resolve, o.resolver, r.log)
	written, err := writer.WriteAll(ctx, r.results, r.inventory)
	r.written = written
	r.entry.Hosts = len(written)
	if err != nil {
		return fmt.Errorf("persisting results: %w", err)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
