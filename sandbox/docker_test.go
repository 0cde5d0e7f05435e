package sandbox

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/docker/docker/pkg/stdcopy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewDockerFactory(t *testing.T) {
	factory := NewDockerFactory(zap.NewNop())
	require.NotNil(t, factory)
}

func TestDrainDemuxed(t *testing.T) {
	var stream bytes.Buffer
	_, err := stdcopy.NewStdWriter(&stream, stdcopy.Stdout).Write([]byte("hello\n"))
	require.NoError(t, err)
	_, err = stdcopy.NewStdWriter(&stream, stdcopy.Stderr).Write([]byte("warning\n"))
	require.NoError(t, err)

	stdout, stderr, timedOut := drainDemuxed(context.Background(), &stream)
	require.False(t, timedOut)
	assert.Equal(t, "hello\n", stdout)
	assert.Equal(t, "warning\n", stderr)
}

// stalledReader blocks every Read until unblock is closed, like an exec
// stream from a backend that stopped responding.
type stalledReader struct {
	unblock chan struct{}
}

func (r *stalledReader) Read([]byte) (int, error) {
	<-r.unblock
	return 0, io.EOF
}

func TestDrainDemuxedTimeout(t *testing.T) {
	reader := &stalledReader{unblock: make(chan struct{})}
	t.Cleanup(func() { close(reader.unblock) })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	stdout, stderr, timedOut := drainDemuxed(ctx, reader)
	require.True(t, timedOut)
	// The copy goroutine may still be running; no partial output is exposed.
	assert.Empty(t, stdout)
	assert.Empty(t, stderr)
}
