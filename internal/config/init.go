package config

import (
	"fmt"
	"os"
)

const starterConfig = `# pkgforge configuration
repo:
  name: manjaro-awesome
  remote_dir: /var/www/repo
  server_url: ${REPO_SERVER_URL}

remote:
  host: ${VPS_HOST}
  user: ${VPS_USER}
  key_path: ~/.ssh/id_ed25519

units:
  order: remote-first
  local:
    - name: gghelper
    - name: awesome-copycats-manjaro
  aur:
    - name: i3lock-color
    - name: awesome-git

build:
  timeouts:
    default: 1h
    large: 2h
  large_units:
    - awesome-git
  retry:
    max_retries: 2
    initial_delay: 2s

publish:
  retention: 3
  attempts: 3
  delay: 5s
  push_bumps: true

pipeline:
  stop_on_failure: false

daemon:
  interval: 6h
  metrics_addr: ":9641"

notify:
  enabled: false
`

// Init writes a starter configuration file. Refuses to overwrite unless force
// is set.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("configuration file %s already exists (use --force to overwrite)", path)
	}
	if err := os.WriteFile(path, []byte(starterConfig), 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
