package redis

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdder struct {
	calls []*redis.XAddArgs
}

func (f *fakeAdder) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.calls = append(f.calls, a)
	return redis.NewStringResult("1700000000000-0", nil)
}

func TestPublishToStream_StringifiesValues(t *testing.T) {
	adder := &fakeAdder{}

	id, err := PublishToStream(context.Background(), adder, "tile:events", 0, map[string]interface{}{
		"state": "patient",
		"count": 3,
		"ok":    true,
		"raw":   []byte("x"),
		"meta":  map[string]string{"a": "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, "1700000000000-0", id)

	require.Len(t, adder.calls, 1)
	args := adder.calls[0]
	assert.Equal(t, "tile:events", args.Stream)
	assert.Zero(t, args.MaxLen)

	values := args.Values.(map[string]interface{})
	assert.Equal(t, "patient", values["state"])
	assert.Equal(t, "3", values["count"])
	assert.Equal(t, "true", values["ok"])
	assert.Equal(t, "x", values["raw"])
	assert.Equal(t, `{"a":"b"}`, values["meta"])
}

func TestPublishJSONToStream_TrimsWithMaxLen(t *testing.T) {
	adder := &fakeAdder{}

	_, err := PublishJSONToStream(context.Background(), adder, "tile:events", 1000, map[string]string{"to": "default"})
	require.NoError(t, err)

	args := adder.calls[0]
	assert.Equal(t, int64(1000), args.MaxLen)
	assert.True(t, args.Approx)

	values := args.Values.(map[string]interface{})
	var decoded map[string]string
	require.NoError(t, json.Unmarshal([]byte(values["data"].(string)), &decoded))
	assert.Equal(t, "default", decoded["to"])
	assert.NotEmpty(t, values["timestamp"])
}

func TestPublishToStream_PropagatesError(t *testing.T) {
	adder := errAdder{}
	_, err := PublishToStream(context.Background(), adder, "s", 0, map[string]interface{}{"k": "v"})
	require.Error(t, err)
}

type errAdder struct{}

func (errAdder) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	return redis.NewStringResult("", assert.AnError)
}
