package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
)

const defaultConnectTimeout = 10 * time.Second

type SSHDialer struct {
	port    int
	timeout time.Duration
	log     logrus.FieldLogger
	// freshly provisioned hosts have unknown host keys
	hostKeyCallback ssh.HostKeyCallback
}

var _ Dialer = (*SSHDialer)(nil)

func NewSSHDialer(port int, log logrus.FieldLogger) *SSHDialer {
	return &SSHDialer{
		port:            port,
		timeout:         defaultConnectTimeout,
		log:             log,
		hostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}
}

func (d *SSHDialer) Dial(ctx context.Context, host, user, privateKeyPath string) (Session, error) {

	key, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading private key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}

	config := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: d.hostKeyCallback,
		Timeout:         d.timeout,
	}

	addr := net.JoinHostPort(host, strconv.Itoa(d.port))
	d.log.WithField("host", addr).Debugf("Establishing connection as %s", user)

	dialer := net.Dialer{Timeout: d.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	// bound the handshake, then clear the deadline for the session itself
	deadline := time.Now().Add(d.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	_ = conn.SetDeadline(deadline)

	clientConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})

	return &SSHSession{
		client: ssh.NewClient(clientConn, chans, reqs),
		log:    d.log.WithField("host", addr),
	}, nil
}

type SSHSession struct {
	client *ssh.Client
	log    logrus.FieldLogger
}

var _ Session = (*SSHSession)(nil)

func (s *SSHSession) Run(ctx context.Context, command string) (Result, error) {

	session, err := s.client.NewSession()
	if err != nil {
		return Result{}, err
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	s.log.Debugf("Running: %s", command)

	if err := session.Start(command); err != nil {
		return Result{}, err
	}

	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	select {
	case err = <-done:
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		_ = session.Close()
		<-done
		return Result{ExitStatus: -1, Stdout: stdout.String(), Stderr: stderr.String()}, ctx.Err()
	}

	result := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			result.ExitStatus = exitErr.ExitStatus()
			return result, nil
		}
		result.ExitStatus = -1
		return result, err
	}
	return result, nil
}

func (s *SSHSession) Upload(ctx context.Context, localPath, remotePath string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer src.Close()

	return s.transfer(ctx, func(client *sftp.Client) error {
		dst, err := client.Create(remotePath)
		if err != nil {
			return fmt.Errorf("creating %s: %w", remotePath, err)
		}
		if _, err := io.Copy(dst, src); err != nil {
			dst.Close()
			return fmt.Errorf("writing %s: %w", remotePath, err)
		}
		return dst.Close()
	})
}

func (s *SSHSession) Download(ctx context.Context, remotePath, localPath string) error {
	dst, err := os.Create(localPath)
	if err != nil {
		return err
	}

	err = s.transfer(ctx, func(client *sftp.Client) error {
		src, err := client.Open(remotePath)
		if err != nil {
			return fmt.Errorf("opening %s: %w", remotePath, err)
		}
		defer src.Close()
		if _, err := io.Copy(dst, src); err != nil {
			return fmt.Errorf("reading %s: %w", remotePath, err)
		}
		return nil
	})
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	return err
}

// transfer runs fn over a dedicated sftp channel, tearing the channel down if ctx ends first.
func (s *SSHSession) transfer(ctx context.Context, fn func(*sftp.Client) error) error {
	client, err := sftp.NewClient(s.client)
	if err != nil {
		return fmt.Errorf("starting sftp: %w", err)
	}
	defer client.Close()

	done := make(chan error, 1)
	go func() {
		done <- fn(client)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		client.Close()
		<-done
		return ctx.Err()
	}
}

func (s *SSHSession) Close() error {
	s.log.Debug("Closing connection")
	return s.client.Close()
}
