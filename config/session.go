package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/liamg/stormscan/failure"
)

// SessionOptions is what the caller asks for on the command line.
type SessionOptions struct {
	TargetFile     string
	APIKeysFile    string
	OutputDir      string
	PublicKeyPath  string
	PrivateKeyPath string
	NoResolve      bool
	// RequireTargets fails the session when the inventory turns up no hosts.
	RequireTargets bool
}

// Session is the resolved, validated configuration of one scan session.
// It is built once by NewSession and only read afterwards.
type Session struct {
	Provider       Provider
	SSH            SSH
	Readiness      Readiness
	Execution      Execution
	TargetFile     string
	Accounts       []Account
	OutputDir      string
	PublicKey      string
	PrivateKeyPath string
	Resolve        bool
	RequireTargets bool
}

func NewSession(env *Environment, opts SessionOptions) (Session, error) {

	if env == nil {
		return Session{}, failure.Config("building session", fmt.Errorf("no environment"))
	}

	if (opts.TargetFile == "") == (opts.APIKeysFile == "") {
		return Session{}, failure.Config("building session", fmt.Errorf("exactly one of a target file or an api keys file is required"))
	}

	session := Session{
		Provider:       env.Provider,
		SSH:            env.SSH,
		Readiness:      env.Readiness,
		Execution:      env.Execution,
		TargetFile:     opts.TargetFile,
		OutputDir:      opts.OutputDir,
		PrivateKeyPath: opts.PrivateKeyPath,
		Resolve:        !opts.NoResolve,
		RequireTargets: opts.RequireTargets,
	}

	if opts.APIKeysFile != "" {
		accounts, err := LoadAccounts(opts.APIKeysFile)
		if err != nil {
			return Session{}, err
		}
		session.Accounts = accounts
	}

	if opts.OutputDir == "" {
		return Session{}, failure.Config("building session", fmt.Errorf("an output directory is required"))
	}
	info, err := os.Stat(opts.OutputDir)
	if err != nil {
		return Session{}, failure.Config("checking output directory", err)
	}
	if !info.IsDir() {
		return Session{}, failure.Config("checking output directory", fmt.Errorf("%s is not a directory", opts.OutputDir))
	}

	key, err := os.ReadFile(opts.PublicKeyPath)
	if err != nil {
		return Session{}, failure.Config("reading ssh public key", err)
	}
	session.PublicKey = strings.TrimSpace(string(key))
	if session.PublicKey == "" {
		return Session{}, failure.Config("reading ssh public key", fmt.Errorf("%s is empty", opts.PublicKeyPath))
	}

	if _, err := os.Stat(opts.PrivateKeyPath); err != nil {
		return Session{}, failure.Config("checking ssh private key", err)
	}

	return session, nil
}
