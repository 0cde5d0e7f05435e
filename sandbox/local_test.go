package sandbox

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newLocalProvider(t *testing.T, runner *MockCommandRunner, fs FileSystem) *LocalProvider {
	t.Helper()

	factory := NewLocalFactory(zap.NewNop(),
		WithLocalCommandRunner(runner),
		WithLocalFileSystem(fs))

	provider, err := factory.New(context.Background(), testOptions())
	require.NoError(t, err)
	return provider.(*LocalProvider)
}

func TestLocalRunCommand(t *testing.T) {
	runner := &MockCommandRunner{
		respond: func([]string) (string, string, int, error) {
			return "hello\n", "", 0, nil
		},
	}
	provider := newLocalProvider(t, runner, NewMockFileSystem())

	stdout, err := provider.RunCommand(context.Background(), "python execution_script.py", 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", stdout)

	require.Len(t, runner.Calls(), 1)
	joined := strings.Join(runner.Calls()[0], " ")
	assert.Contains(t, joined, "cd "+shellQuote(provider.workDir))
	assert.Contains(t, joined, "python execution_script.py")
}

func TestLocalRunCommandTimeout(t *testing.T) {
	runner := &MockCommandRunner{
		respond: func([]string) (string, string, int, error) {
			time.Sleep(50 * time.Millisecond)
			return "", "", 0, nil
		},
	}
	provider := newLocalProvider(t, runner, NewMockFileSystem())

	_, err := provider.RunCommand(context.Background(), "sleep 60", 10*time.Millisecond)

	var timeoutErr *TimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	assert.Equal(t, 10*time.Millisecond, timeoutErr.Timeout)
}

func TestLocalRunCommandFault(t *testing.T) {
	runner := &MockCommandRunner{
		respond: func([]string) (string, string, int, error) {
			return "", "NameError: name 'x' is not defined", 1, nil
		},
	}
	provider := newLocalProvider(t, runner, NewMockFileSystem())

	_, err := provider.RunCommand(context.Background(), "python execution_script.py", time.Second)

	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, 1, cmdErr.ExitCode)
}

func TestLocalWriteAndReadFile(t *testing.T) {
	fs := NewMockFileSystem()
	provider := newLocalProvider(t, &MockCommandRunner{}, fs)

	require.NoError(t, provider.WriteFile(context.Background(), "execution_script.py", "print('hi')"))

	content, err := provider.ReadFile(context.Background(), "execution_script.py")
	require.NoError(t, err)
	assert.Equal(t, "print('hi')", content)

	_, ok := fs.files[filepath.Join(provider.workDir, "execution_script.py")]
	assert.True(t, ok)
}

func TestLocalWriteFileOverwrites(t *testing.T) {
	fs := NewMockFileSystem()
	provider := newLocalProvider(t, &MockCommandRunner{}, fs)

	require.NoError(t, provider.WriteFile(context.Background(), "execution_script.py", "first"))
	require.NoError(t, provider.WriteFile(context.Background(), "execution_script.py", "second"))

	content, err := provider.ReadFile(context.Background(), "execution_script.py")
	require.NoError(t, err)
	assert.Equal(t, "second", content)
}

func TestLocalWriteFileRejectsEscape(t *testing.T) {
	provider := newLocalProvider(t, &MockCommandRunner{}, NewMockFileSystem())

	var fsErr *FilesystemError
	assert.True(t, errors.As(provider.WriteFile(context.Background(), "/etc/passwd", "x"), &fsErr))
	assert.True(t, errors.As(provider.WriteFile(context.Background(), "../escape.py", "x"), &fsErr))
}

func TestLocalReadFileMissing(t *testing.T) {
	provider := newLocalProvider(t, &MockCommandRunner{}, NewMockFileSystem())

	_, err := provider.ReadFile(context.Background(), "nope.txt")

	var fsErr *FilesystemError
	assert.True(t, errors.As(err, &fsErr))
}

func TestLocalCleanupIdempotent(t *testing.T) {
	fs := NewMockFileSystem()
	provider := newLocalProvider(t, &MockCommandRunner{}, fs)
	require.NoError(t, provider.WriteFile(context.Background(), "a.txt", "x"))

	require.NoError(t, provider.Cleanup(context.Background()))
	assert.Empty(t, fs.files)

	require.NoError(t, provider.Cleanup(context.Background()))

	_, err := provider.RunCommand(context.Background(), "true", time.Second)
	var unavailErr *UnavailableError
	assert.True(t, errors.As(err, &unavailErr))
}
