// Package failure classifies the ways a scan session can fail.
package failure

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindConfig        Kind = "config"
	KindProvision     Kind = "provision"
	KindConnectivity  Kind = "connectivity"
	KindRemoteCommand Kind = "remote command"
	KindTransfer      Kind = "transfer"
	KindParse         Kind = "parse"
)

// Sentinels for errors.Is checks. Any *Error of the same kind matches.
var (
	ErrConfig        = &Error{Kind: KindConfig}
	ErrProvision     = &Error{Kind: KindProvision}
	ErrConnectivity  = &Error{Kind: KindConnectivity}
	ErrRemoteCommand = &Error{Kind: KindRemoteCommand}
	ErrTransfer      = &Error{Kind: KindTransfer}
	ErrParse         = &Error{Kind: KindParse}
)

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op == "" && e.Err == nil:
		return fmt.Sprintf("%s error", e.Kind)
	case e.Err == nil:
		return fmt.Sprintf("%s error: %s", e.Kind, e.Op)
	case e.Op == "":
		return fmt.Sprintf("%s error: %s", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s error: %s: %s", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Config(op string, err error) error        { return New(KindConfig, op, err) }
func Provision(op string, err error) error     { return New(KindProvision, op, err) }
func Connectivity(op string, err error) error  { return New(KindConnectivity, op, err) }
func RemoteCommand(op string, err error) error { return New(KindRemoteCommand, op, err) }
func Transfer(op string, err error) error      { return New(KindTransfer, op, err) }
func Parse(op string, err error) error         { return New(KindParse, op, err) }

// KindOf returns the kind of the outermost *Error in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
