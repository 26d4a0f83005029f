// Package autostart installs the daemon as a per-user login service.
package autostart

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"text/template"
)

const macLaunchAgentPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>com.hidject.daemon</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
{{- range .Args}}
        <string>{{.}}</string>
{{- end}}
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <false/>
</dict>
</plist>
`

const systemdUserUnit = `[Unit]
Description=hidject injection daemon
After=network-online.target

[Service]
ExecStart={{.ExecutablePath}}{{range .Args}} {{.}}{{end}}
Restart=on-failure

[Install]
WantedBy=default.target
`

// Service describes the command line the login service runs.
type Service struct {
	ExecutablePath string
	Args           []string
}

// DefaultService runs "<this executable> serve".
func DefaultService() (Service, error) {
	execPath, err := os.Executable()
	if err != nil {
		return Service{}, fmt.Errorf("failed to get executable path: %w", err)
	}
	return Service{ExecutablePath: execPath, Args: []string{"serve"}}, nil
}

// userHome is replaced in tests.
var userHome = os.UserHomeDir

// unitPath returns the service file location and its template for goos.
func unitPath(goos string) (string, *template.Template, error) {
	home, err := userHome()
	if err != nil {
		return "", nil, err
	}
	switch goos {
	case "darwin":
		return filepath.Join(home, "Library", "LaunchAgents", "com.hidject.daemon.plist"),
			template.Must(template.New("plist").Parse(macLaunchAgentPlist)), nil
	case "linux":
		return filepath.Join(home, ".config", "systemd", "user", "hidject.service"),
			template.Must(template.New("unit").Parse(systemdUserUnit)), nil
	default:
		return "", nil, fmt.Errorf("unsupported platform: %s", goos)
	}
}

// Enable enables auto-start on login
func Enable(svc Service) error {
	return enable(runtime.GOOS, svc)
}

func enable(goos string, svc Service) error {
	path, tmpl, err := unitPath(goos)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return tmpl.Execute(f, svc)
}

// Disable disables auto-start on login
func Disable() error {
	return disable(runtime.GOOS)
}

func disable(goos string) error {
	path, _, err := unitPath(goos)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// IsEnabled checks if auto-start is enabled
func IsEnabled() bool {
	return isEnabled(runtime.GOOS)
}

func isEnabled(goos string) bool {
	path, _, err := unitPath(goos)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Path returns where the service file lives on this platform.
func Path() (string, error) {
	path, _, err := unitPath(runtime.GOOS)
	return path, err
}
