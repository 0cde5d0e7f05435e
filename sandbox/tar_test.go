package sandbox

import (
	"archive/tar"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileToTarRoundTrip(t *testing.T) {
	content := []byte("print('hello')\n")

	stream, err := fileToTar("execution_script.py", content)
	require.NoError(t, err)

	got, err := fileFromTar(stream)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestFileFromTarSkipsDirectories(t *testing.T) {
	var buf bytes.Buffer
	w := tar.NewWriter(&buf)

	require.NoError(t, w.WriteHeader(&tar.Header{
		Name:     "pkg/",
		Typeflag: tar.TypeDir,
		Mode:     DirPermission,
	}))
	content := []byte("data")
	require.NoError(t, w.WriteHeader(&tar.Header{
		Name: "pkg/main.py",
		Mode: FilePermission,
		Size: int64(len(content)),
	}))
	_, err := w.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	got, err := fileFromTar(&buf)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestFileFromTarEmptyStream(t *testing.T) {
	var buf bytes.Buffer
	w := tar.NewWriter(&buf)
	require.NoError(t, w.Close())

	_, err := fileFromTar(&buf)
	assert.Error(t, err)
}
