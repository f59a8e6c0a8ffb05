package config

import "time"

// Default timeout classes mirror the historical builder settings: an hour for
// ordinary packages, two for the known heavyweights (gtk, qt, chromium-scale).
const (
	defaultBuildTimeout = time.Hour
	largeBuildTimeout   = 2 * time.Hour
)

// defaultRequiredTools are checked once per run before building anything.
var defaultRequiredTools = []string{
	"make", "gcc", "pkg-config", "autoconf", "automake",
	"libtool", "cmake", "meson", "ninja",
}

func (c *Config) applyDefaults() {
	if c.Repo.RemoteDir == "" {
		c.Repo.RemoteDir = "/var/www/repo"
	}
	if c.Remote.Port == 0 {
		c.Remote.Port = 22
	}
	if c.Units.Order == "" {
		c.Units.Order = OrderRemoteFirst
	}
	for i := range c.Units.Local {
		if c.Units.Local[i].Dir == "" {
			c.Units.Local[i].Dir = "./" + c.Units.Local[i].Name
		}
	}
	for i := range c.Units.AUR {
		if c.Units.AUR[i].URL == "" {
			c.Units.AUR[i].URL = "https://aur.archlinux.org/" + c.Units.AUR[i].Name + ".git"
		}
	}
	if c.Build.WorkDir == "" {
		c.Build.WorkDir = "./build_work"
	}
	if c.Build.OutputDir == "" {
		c.Build.OutputDir = "./built_packages"
	}
	if c.Build.Timeouts.Default == 0 {
		c.Build.Timeouts.Default = Duration(defaultBuildTimeout)
	}
	if c.Build.Timeouts.Large == 0 {
		c.Build.Timeouts.Large = Duration(largeBuildTimeout)
	}
	if len(c.Build.RequiredTools) == 0 {
		c.Build.RequiredTools = defaultRequiredTools
	}
	if c.Build.Retry.MaxRetries == 0 {
		c.Build.Retry.MaxRetries = 2
	}
	if c.Build.Retry.InitialDelay == 0 {
		c.Build.Retry.InitialDelay = Duration(2 * time.Second)
	}
	if c.Build.Retry.MaxDelay == 0 {
		c.Build.Retry.MaxDelay = Duration(30 * time.Second)
	}
	if c.Build.Retry.Backoff == "" {
		c.Build.Retry.Backoff = "fixed"
	}
	if c.Publish.Retention == 0 {
		c.Publish.Retention = 3
	}
	if c.Publish.Attempts == 0 {
		c.Publish.Attempts = 3
	}
	if c.Publish.Delay == 0 {
		c.Publish.Delay = Duration(5 * time.Second)
	}
	if c.Daemon.Interval == 0 {
		c.Daemon.Interval = Duration(6 * time.Hour)
	}
	if c.Daemon.MetricsAddr == "" {
		c.Daemon.MetricsAddr = ":9641"
	}
	if c.Notify.Subject == "" {
		c.Notify.Subject = "pkgforge.runs"
	}
	if c.StateDB == "" {
		c.StateDB = "./.buildtracking/state.db"
	}
}

// TimeoutFor returns the wall-clock build timeout for a unit, honoring
// per-unit overrides before the large/default classes.
func (c *Config) TimeoutFor(unit string) time.Duration {
	if d, ok := c.Build.Timeouts.PerUnit[unit]; ok && d > 0 {
		return d.Std()
	}
	for _, name := range c.Build.LargeUnits {
		if name == unit {
			return c.Build.Timeouts.Large.Std()
		}
	}
	return c.Build.Timeouts.Default.Std()
}
