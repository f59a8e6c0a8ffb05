package remote

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/megvadulthangya/manjaro-awesome/internal/config"
)

// SSHTransport implements Transport by invoking the ssh and scp binaries.
// Quoting note: remote paths and filenames pass through a remote shell, so
// they are single-quoted; package filenames never contain quotes.
type SSHTransport struct {
	cfg config.RemoteConfig
}

// NewSSHTransport creates a transport for the configured remote endpoint.
func NewSSHTransport(cfg config.RemoteConfig) *SSHTransport {
	return &SSHTransport{cfg: cfg}
}

func (t *SSHTransport) sshArgs() []string {
	args := []string{"-o", "BatchMode=yes"}
	if t.cfg.KeyPath != "" {
		args = append(args, "-i", t.cfg.KeyPath)
	}
	if t.cfg.Port != 0 && t.cfg.Port != 22 {
		args = append(args, "-p", strconv.Itoa(t.cfg.Port))
	}
	return args
}

func (t *SSHTransport) scpArgs() []string {
	args := []string{"-B"}
	if t.cfg.KeyPath != "" {
		args = append(args, "-i", t.cfg.KeyPath)
	}
	if t.cfg.Port != 0 && t.cfg.Port != 22 {
		args = append(args, "-P", strconv.Itoa(t.cfg.Port))
	}
	return args
}

// List runs a remote find over the directory. The trailing "|| true" keeps a
// missing directory from surfacing as an error: an empty repository is a
// valid state.
func (t *SSHTransport) List(ctx context.Context, dir string) ([]string, error) {
	script := fmt.Sprintf("find '%s' -maxdepth 1 -type f -printf '%%f\\n' 2>/dev/null || true", dir)
	args := append(t.sshArgs(), t.cfg.Addr(), script)

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, "ssh", args...)
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("remote listing: %w", err)
	}

	var names []string
	for _, line := range strings.Split(out.String(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}

// Upload ensures the remote directory exists, then copies all files in one
// scp invocation.
func (t *SSHTransport) Upload(ctx context.Context, files []string, dir string) error {
	if len(files) == 0 {
		return nil
	}
	mkdir := append(t.sshArgs(), t.cfg.Addr(), fmt.Sprintf("mkdir -p '%s'", dir))
	if err := exec.CommandContext(ctx, "ssh", mkdir...).Run(); err != nil {
		return fmt.Errorf("create remote directory: %w", err)
	}

	args := append(t.scpArgs(), files...)
	args = append(args, fmt.Sprintf("%s:%s/", t.cfg.Addr(), dir))
	if out, err := exec.CommandContext(ctx, "scp", args...).CombinedOutput(); err != nil {
		return fmt.Errorf("upload %d files: %w: %s", len(files), err, truncate(out))
	}
	return nil
}

// Download copies one remote file to a local path.
func (t *SSHTransport) Download(ctx context.Context, remotePath, localPath string) error {
	args := append(t.scpArgs(), fmt.Sprintf("%s:%s", t.cfg.Addr(), remotePath), localPath)
	if out, err := exec.CommandContext(ctx, "scp", args...).CombinedOutput(); err != nil {
		return fmt.Errorf("download %s: %w: %s", remotePath, err, truncate(out))
	}
	return nil
}

// Remove deletes the named files from the remote directory.
func (t *SSHTransport) Remove(ctx context.Context, dir string, names []string) error {
	if len(names) == 0 {
		return nil
	}
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "'" + n + "'"
	}
	script := fmt.Sprintf("cd '%s' && rm -f %s", dir, strings.Join(quoted, " "))
	args := append(t.sshArgs(), t.cfg.Addr(), script)
	if out, err := exec.CommandContext(ctx, "ssh", args...).CombinedOutput(); err != nil {
		return fmt.Errorf("remove %d files: %w: %s", len(names), err, truncate(out))
	}
	return nil
}

func truncate(out []byte) string {
	s := strings.TrimSpace(string(out))
	if len(s) > 500 {
		return s[:500]
	}
	return s
}
