package failure

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindMatching(t *testing.T) {
	err := fmt.Errorf("bootstrap: %w", RemoteCommand("apt-get", errors.New("exit status 100")))

	assert.True(t, errors.Is(err, ErrRemoteCommand))
	assert.False(t, errors.Is(err, ErrTransfer))
	assert.Equal(t, KindRemoteCommand, KindOf(err))
	assert.Equal(t, "bootstrap: remote command error: apt-get: exit status 100", err.Error())
}

func TestUnwrapReachesCause(t *testing.T) {
	cause := errors.New("boom")
	err := Transfer("upload", cause)

	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, Kind(""), KindOf(cause))
}

func TestSentinelMessage(t *testing.T) {
	assert.Equal(t, "config error", ErrConfig.Error())
	assert.Equal(t, "parse error: empty", Parse("empty", nil).Error())
}
