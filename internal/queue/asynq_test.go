package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsynqOptions(t *testing.T) {
	assert.Empty(t, asynqOptions(nil))

	opts := asynqOptions([]EnqueueOption{{
		Queue:    "chat",
		MaxRetry: 3,
		Timeout:  30 * time.Second,
	}})
	assert.Len(t, opts, 3)

	assert.Len(t, asynqOptions([]EnqueueOption{{Queue: "chat"}}), 1)
}

func TestParseRedisURL(t *testing.T) {
	_, err := parseRedisURL("")
	assert.Error(t, err)

	opt, err := parseRedisURL("redis://localhost:6379/2")
	require.NoError(t, err)
	assert.NotNil(t, opt)
}
