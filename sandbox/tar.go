package sandbox

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"time"
)

// fileToTar wraps a single file as an uncompressed tar stream, the format
// the docker copy API expects. The entry name may contain subdirectories
// relative to the destination.
func fileToTar(name string, content []byte) (io.Reader, error) {
	var buf bytes.Buffer
	tarWriter := tar.NewWriter(&buf)

	header := &tar.Header{
		Name:    name,
		Mode:    FilePermission,
		Size:    int64(len(content)),
		ModTime: time.Now(),
	}
	if err := tarWriter.WriteHeader(header); err != nil {
		return nil, fmt.Errorf("write tar header: %w", err)
	}
	if _, err := tarWriter.Write(content); err != nil {
		return nil, fmt.Errorf("write tar content: %w", err)
	}
	if err := tarWriter.Close(); err != nil {
		return nil, fmt.Errorf("close tar writer: %w", err)
	}

	return &buf, nil
}

// fileFromTar extracts the first regular file from a tar stream, as returned
// by the docker copy API for a single-file source.
func fileFromTar(r io.Reader) ([]byte, error) {
	tarReader := tar.NewReader(r)

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading tar: %w", err)
		}

		if header.Typeflag != tar.TypeReg {
			continue
		}

		content, err := io.ReadAll(tarReader)
		if err != nil {
			return nil, fmt.Errorf("read tar content: %w", err)
		}
		return content, nil
	}

	return nil, fmt.Errorf("no regular file in tar stream")
}
