package remote

import (
	"context"
	"fmt"
	"os"
	"path"
	"sync"
)

// MockTransport is an in-memory Transport for tests. Files are keyed by
// directory and name; Upload reads local file contents so Download round-trips.
type MockTransport struct {
	mu    sync.Mutex
	dirs  map[string]map[string][]byte
	calls map[string]int

	// Failure injection: per-operation error, cleared manually by the test.
	ListErr     error
	UploadErr   error
	DownloadErr error
	RemoveErr   error

	// FailUploads makes the first N Upload calls fail before succeeding.
	FailUploads int
}

// NewMockTransport creates an empty mock.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		dirs:  make(map[string]map[string][]byte),
		calls: make(map[string]int),
	}
}

// Seed pre-populates a remote file.
func (m *MockTransport) Seed(dir, name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dirs[dir] == nil {
		m.dirs[dir] = make(map[string][]byte)
	}
	m.dirs[dir][name] = data
}

// Files returns the current names in a directory.
func (m *MockTransport) Files(dir string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for name := range m.dirs[dir] {
		names = append(names, name)
	}
	return names
}

// Calls returns how many times the named operation ran.
func (m *MockTransport) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *MockTransport) List(ctx context.Context, dir string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["list"]++
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var names []string
	for name := range m.dirs[dir] {
		names = append(names, name)
	}
	return names, nil
}

func (m *MockTransport) Upload(ctx context.Context, files []string, dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["upload"]++
	if m.UploadErr != nil {
		return m.UploadErr
	}
	if m.FailUploads > 0 {
		m.FailUploads--
		return fmt.Errorf("injected upload failure")
	}
	if m.dirs[dir] == nil {
		m.dirs[dir] = make(map[string][]byte)
	}
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return err
		}
		m.dirs[dir][path.Base(f)] = data
	}
	return nil
}

func (m *MockTransport) Download(ctx context.Context, remotePath, localPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["download"]++
	if m.DownloadErr != nil {
		return m.DownloadErr
	}
	dir, name := path.Dir(remotePath), path.Base(remotePath)
	data, ok := m.dirs[dir][name]
	if !ok {
		return fmt.Errorf("remote file %s not found", remotePath)
	}
	return os.WriteFile(localPath, data, 0o644)
}

func (m *MockTransport) Remove(ctx context.Context, dir string, names []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["remove"]++
	if m.RemoveErr != nil {
		return m.RemoveErr
	}
	for _, name := range names {
		delete(m.dirs[dir], name)
	}
	return nil
}
