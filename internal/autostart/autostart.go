// Package autostart manages login-item registration. On macOS this is a
// LaunchAgent plist; on Linux an XDG autostart desktop entry. Enable and
// Disable are idempotent so config reconciliation at startup can call them
// unconditionally.
package autostart

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const label = "com.todotray.app"

// Manager installs and removes the login item for the current executable.
type Manager struct {
	dir      string
	file     string
	execPath string
	render   func(execPath string) string
}

// New returns a Manager for the current platform, or an error when the
// platform has no supported autostart mechanism.
func New() (*Manager, error) {
	execPath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("could not determine executable path: %w", err)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("could not determine home directory: %w", err)
	}

	switch runtime.GOOS {
	case "darwin":
		return newManager(
			filepath.Join(home, "Library", "LaunchAgents"),
			label+".plist",
			execPath,
			renderPlist,
		), nil
	case "linux":
		configDir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("could not determine config directory: %w", err)
		}
		return newManager(
			filepath.Join(configDir, "autostart"),
			label+".desktop",
			execPath,
			renderDesktopEntry,
		), nil
	default:
		return nil, fmt.Errorf("autostart is not supported on %s", runtime.GOOS)
	}
}

func newManager(dir, file, execPath string, render func(string) string) *Manager {
	return &Manager{dir: dir, file: file, execPath: execPath, render: render}
}

func (m *Manager) path() string {
	return filepath.Join(m.dir, m.file)
}

// IsEnabled reports whether the login item is currently installed.
func (m *Manager) IsEnabled() bool {
	_, err := os.Stat(m.path())
	return err == nil
}

// Enable installs the login item. Installing an already-installed item
// rewrites it, which keeps the entry current after the binary moves.
func (m *Manager) Enable() error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("could not create %s: %w", m.dir, err)
	}
	if err := os.WriteFile(m.path(), []byte(m.render(m.execPath)), 0o644); err != nil {
		return fmt.Errorf("could not write %s: %w", m.path(), err)
	}
	return nil
}

// Disable removes the login item. Removing an absent item is not an error.
func (m *Manager) Disable() error {
	err := os.Remove(m.path())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("could not remove %s: %w", m.path(), err)
	}
	return nil
}

func renderPlist(execPath string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Label</key>
	<string>%s</string>
	<key>ProgramArguments</key>
	<array>
		<string>%s</string>
	</array>
	<key>RunAtLoad</key>
	<true/>
</dict>
</plist>
`, label, execPath)
}

func renderDesktopEntry(execPath string) string {
	return fmt.Sprintf(`[Desktop Entry]
Type=Application
Name=todotray
Exec=%s
X-GNOME-Autostart-enabled=true
`, execPath)
}
