package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	err := New(NotFound, "nobody here")
	assert.Equal(t, NotFound, KindOf(err))

	wrapped := fmt.Errorf("handler: %w", err)
	assert.Equal(t, NotFound, KindOf(wrapped))

	assert.Equal(t, Unknown, KindOf(errors.New("plain")))
	assert.Equal(t, Unknown, KindOf(nil))
}

func TestMessageOfHidesInternalDetail(t *testing.T) {
	assert.Equal(t, "nobody here", MessageOf(New(NotFound, "nobody here")))

	// Unclassified errors must never leak their text to end users.
	assert.Equal(t, BusyMessage, MessageOf(errors.New("pq: connection refused")))
	assert.Equal(t, BusyMessage, MessageOf(nil))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := Wrap(RemoteTransient, BusyMessage, cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "remote_transient")
	assert.Contains(t, err.Error(), "dial tcp: timeout")
}

func TestFromRemote(t *testing.T) {
	cause := errors.New("429 from upstream")

	quota := FromRemote(cause, true)
	assert.Equal(t, RemoteQuotaExceeded, quota.Kind)
	transient := FromRemote(cause, false)
	assert.Equal(t, RemoteTransient, transient.Kind)

	// End users cannot tell the two apart.
	assert.Equal(t, MessageOf(transient), MessageOf(quota))
}

func TestKindStrings(t *testing.T) {
	assert.Equal(t, "rate_limited", RateLimited.String())
	assert.Equal(t, "configuration_missing", ConfigurationMissing.String())
	assert.Equal(t, "unknown", Unknown.String())
}
