package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

type cleanupAction struct {
	name string
	fn   func(context.Context) error
}

// cleanupStack releases acquired resources in reverse order of acquisition.
// It runs at most once; every action is attempted even if an earlier one fails.
type cleanupStack struct {
	actions []cleanupAction
	ran     bool
}

func (s *cleanupStack) push(name string, fn func(context.Context) error) {
	s.actions = append(s.actions, cleanupAction{name: name, fn: fn})
}

func (s *cleanupStack) run(ctx context.Context, log logrus.FieldLogger) error {
	if s.ran {
		return nil
	}
	s.ran = true

	var errs []error
	for i := len(s.actions) - 1; i >= 0; i-- {
		action := s.actions[i]
		log.Debugf("Cleanup: %s", action.name)
		if err := action.fn(ctx); err != nil {
			log.WithError(err).Errorf("Cleanup failed: %s", action.name)
			errs = append(errs, fmt.Errorf("%s: %w", action.name, err))
		}
	}
	return errors.Join(errs...)
}
