// Package remote runs commands on, and copies files to and from, a scan host.
package remote

import "context"

// Result is the outcome of a command that ran to completion.
type Result struct {
	ExitStatus int
	Stdout     string
	Stderr     string
}

func (r Result) OK() bool {
	return r.ExitStatus == 0
}

type Session interface {
	// Run executes command and waits for it. A non-zero exit status is reported
	// in the Result, not as an error.
	Run(ctx context.Context, command string) (Result, error)
	Upload(ctx context.Context, localPath, remotePath string) error
	Download(ctx context.Context, remotePath, localPath string) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, host, user, privateKeyPath string) (Session, error)
}
