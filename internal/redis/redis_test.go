package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestConfig_Enabled(t *testing.T) {
	assert.False(t, Config{}.Enabled())
	assert.True(t, Config{Host: "localhost"}.Enabled())
}

func TestNew_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// nothing listens on port 1
	_, err := New(ctx, Config{Host: "127.0.0.1", Port: "1"}, zap.NewNop())
	assert.ErrorContains(t, err, "failed to connect to Redis")
}
