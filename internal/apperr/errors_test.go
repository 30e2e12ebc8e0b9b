package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "credential configuration: key missing", Configuration("credential", "key missing").Error())
	assert.Equal(t, "credential upstream (status 401): bad key", Upstream("credential", 401, nil, "bad key").Error())
	assert.Equal(t, "internal: boom", (&Error{Kind: KindInternal, Err: errors.New("boom")}).Error())
	assert.Equal(t, "", (*Error)(nil).Error())
}

func TestKindSurvivesWrapping(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := fmt.Errorf("connect: %w", Transport("realtime", cause))

	assert.Equal(t, KindTransport, KindOf(err))
	assert.True(t, Is(err, KindTransport))
	assert.False(t, Is(err, KindTimeout))
	assert.ErrorIs(t, err, cause)
}

func TestKindOfUnclassified(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.False(t, Is(nil, KindInternal))
}

func TestRetryable(t *testing.T) {
	assert.False(t, Configuration("op", "missing").Retryable())
	assert.True(t, Upstream("op", 500, nil, "down").Retryable())
	assert.True(t, Timeout("op", nil).Retryable())
	assert.False(t, (*Error)(nil).Retryable())
}
