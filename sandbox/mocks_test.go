package sandbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// MockCommandRunner records every invocation and answers through a
// caller-supplied respond function. A nil respond succeeds with no output.
type MockCommandRunner struct {
	mu      sync.Mutex
	calls   [][]string
	respond func(args []string) (stdout, stderr string, exitCode int, err error)
}

func (m *MockCommandRunner) RunCommand(ctx context.Context, args []string) (string, string, int, error) {
	m.mu.Lock()
	m.calls = append(m.calls, args)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", "", 0, err
	}
	if m.respond == nil {
		return "", "", 0, nil
	}
	return m.respond(args)
}

func (m *MockCommandRunner) Calls() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// callContaining returns the first recorded call whose joined arguments
// contain the given substring, or nil.
func (m *MockCommandRunner) callContaining(substr string) []string {
	for _, call := range m.Calls() {
		if strings.Contains(strings.Join(call, " "), substr) {
			return call
		}
	}
	return nil
}

// MockFileSystem keeps files in memory and hands out deterministic temp
// directory names.
type MockFileSystem struct {
	files     map[string][]byte
	tempDirs  int
	failWrite bool
}

func NewMockFileSystem() *MockFileSystem {
	return &MockFileSystem{files: make(map[string][]byte)}
}

func (m *MockFileSystem) MkdirTemp(_, pattern string) (string, error) {
	m.tempDirs++
	name := strings.ReplaceAll(pattern, "*", fmt.Sprintf("%d", m.tempDirs))
	return filepath.Join("/tmp", name), nil
}

func (m *MockFileSystem) MkdirAll(string, os.FileMode) error { return nil }

func (m *MockFileSystem) WriteFile(filename string, data []byte, _ os.FileMode) error {
	if m.failWrite {
		return fmt.Errorf("disk full")
	}
	m.files[filename] = data
	return nil
}

func (m *MockFileSystem) ReadFile(filename string) ([]byte, error) {
	data, ok := m.files[filename]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", filename)
	}
	return data, nil
}

func (m *MockFileSystem) RemoveAll(path string) error {
	for name := range m.files {
		if strings.HasPrefix(name, path) {
			delete(m.files, name)
		}
	}
	return nil
}
