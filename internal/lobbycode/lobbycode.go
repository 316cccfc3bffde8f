// Package lobbycode mints the short codes players type to join a lobby.
package lobbycode

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// DefaultAttempts bounds retries when a generated code is already reserved.
const DefaultAttempts = 8

// ErrExhausted is returned when every attempt produced a taken code.
var ErrExhausted = errors.New("no free lobby code")

// Generate returns a random alphanumeric code of the given length, drawn
// from the random bits of version 4 UUIDs.
func Generate(length int) string {
	code := make([]byte, 0, length)
	for len(code) < length {
		id := uuid.New()
		// bytes 6 and 8 carry version and variant bits
		for i, b := range id {
			if i == 6 || i == 8 {
				continue
			}
			// 62*4 = 248; rejecting the top values keeps the draw uniform
			if b >= 248 {
				continue
			}
			code = append(code, alphabet[int(b)%len(alphabet)])
			if len(code) == length {
				break
			}
		}
	}
	return string(code)
}

// Reserver records that a code is in use. Reserve returns false when the code
// is already taken.
type Reserver interface {
	Reserve(ctx context.Context, code string) (bool, error)
}

// MemoryReserver tracks codes for a single process.
type MemoryReserver struct {
	mu    sync.Mutex
	codes map[string]struct{}
}

func NewMemoryReserver() *MemoryReserver {
	return &MemoryReserver{codes: make(map[string]struct{})}
}

func (r *MemoryReserver) Reserve(_ context.Context, code string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.codes[code]; taken {
		return false, nil
	}
	r.codes[code] = struct{}{}
	return true, nil
}

// RedisReserver shares reservations between server instances with SET NX, so
// instances behind one load balancer never hand out the same code. Lobbies
// live as long as their process, so reservations never expire.
type RedisReserver struct {
	client redis.Cmdable
	owner  string
}

func NewRedisReserver(client redis.Cmdable) *RedisReserver {
	return &RedisReserver{
		client: client,
		owner:  uuid.NewString(),
	}
}

func (r *RedisReserver) Reserve(ctx context.Context, code string) (bool, error) {
	ok, err := r.client.SetNX(ctx, "lobby:code:"+code, r.owner, 0).Result()
	if err != nil {
		return false, fmt.Errorf("redis error: %w", err)
	}
	return ok, nil
}

// Minter generates codes until one can be reserved.
type Minter struct {
	reserver Reserver
	length   int
	attempts int
	generate func(int) string
}

func NewMinter(reserver Reserver, length int) *Minter {
	return &Minter{
		reserver: reserver,
		length:   length,
		attempts: DefaultAttempts,
		generate: Generate,
	}
}

func (m *Minter) Mint(ctx context.Context) (string, error) {
	for attempt := 0; attempt < m.attempts; attempt++ {
		code := m.generate(m.length)
		ok, err := m.reserver.Reserve(ctx, code)
		if err != nil {
			return "", err
		}
		if ok {
			return code, nil
		}
	}
	return "", fmt.Errorf("%w after %d attempts", ErrExhausted, m.attempts)
}
