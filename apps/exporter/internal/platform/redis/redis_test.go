package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Connects(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := New(context.Background(), "redis://"+mr.Addr()+"/0")

	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })
}

func TestNew_BadURL(t *testing.T) {
	_, err := New(context.Background(), "http://not-redis")
	assert.Error(t, err)
}
