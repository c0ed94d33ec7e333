package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	data    map[string][]byte
	ttls    map[string]time.Duration
	failErr error
	gets    int
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.gets++
	cmd := redis.NewStringCmd(ctx)
	if f.failErr != nil {
		cmd.SetErr(f.failErr)
		return cmd
	}
	v, ok := f.data[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(string(v))
	return cmd
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	if f.failErr != nil {
		cmd.SetErr(f.failErr)
		return cmd
	}
	f.data[key] = value.([]byte)
	f.ttls[key] = expiration
	cmd.SetVal("OK")
	return cmd
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	for _, k := range keys {
		delete(f.data, k)
	}
	cmd.SetVal(int64(len(keys)))
	return cmd
}

func (f *fakeRedis) Ping(ctx context.Context) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	if f.failErr != nil {
		cmd.SetErr(f.failErr)
	}
	return cmd
}

type summary struct {
	Kind  string   `json:"kind"`
	Lines []string `json:"lines"`
}

func TestKey(t *testing.T) {
	assert.Equal(t, "hospital_a:1234:allergy", Key("hospital_a", 1234, "allergy"))
}

func TestCache_SetThenGet(t *testing.T) {
	f := newFakeRedis()
	c := New(f, time.Hour, zerolog.Nop())
	ctx := context.Background()

	c.Set(ctx, "k", summary{Kind: "diet", Lines: []string{"zero"}})
	assert.Equal(t, time.Hour, f.ttls["k"])

	var got summary
	require.True(t, c.Get(ctx, "k", &got))
	assert.Equal(t, "diet", got.Kind)
	assert.Equal(t, []string{"zero"}, got.Lines)
}

func TestCache_MissAndCorrupt(t *testing.T) {
	f := newFakeRedis()
	c := New(f, time.Hour, zerolog.Nop())
	ctx := context.Background()

	var got summary
	assert.False(t, c.Get(ctx, "absent", &got))

	f.data["bad"] = []byte("{not json")
	assert.False(t, c.Get(ctx, "bad", &got))
	_, still := f.data["bad"]
	assert.False(t, still, "corrupt entry should be deleted")
}

func TestCache_BreakerOpensOnFailures(t *testing.T) {
	f := newFakeRedis()
	f.failErr = errors.New("connection refused")
	c := New(f, time.Hour, zerolog.Nop())
	ctx := context.Background()

	var got summary
	for i := 0; i < 5; i++ {
		assert.False(t, c.Get(ctx, "k", &got))
	}
	// three failures trip the breaker, later calls never reach redis
	assert.Equal(t, 3, f.gets)
}

func TestCache_NilIsNoop(t *testing.T) {
	var c *Cache
	ctx := context.Background()
	var got summary
	assert.False(t, c.Get(ctx, "k", &got))
	c.Set(ctx, "k", summary{})
	c.Delete(ctx, "k")
	assert.NoError(t, c.Ping(ctx))
}
