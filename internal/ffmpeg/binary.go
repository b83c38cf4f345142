// Package ffmpeg provides FFmpeg binary detection, argv template handling,
// and subprocess supervision for streaming sessions.
package ffmpeg

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
)

// FindBinary locates an executable by name.
// Search order: explicit configured path, environment variable, current
// directory, PATH.
func FindBinary(name, configuredPath, envVar string) (string, error) {
	if configuredPath != "" {
		if isExecutable(configuredPath) {
			return configuredPath, nil
		}
		return "", fmt.Errorf("configured %s path %q is not executable", name, configuredPath)
	}

	if envVar != "" {
		if envPath := os.Getenv(envVar); envPath != "" {
			if isExecutable(envPath) {
				return envPath, nil
			}
		}
	}

	localPath := "./" + name
	if isExecutable(localPath) {
		return localPath, nil
	}

	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("binary %s not found", name)
}

// isExecutable checks if a file exists and is executable by the current user.
func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if info.IsDir() {
		return false
	}
	return info.Mode()&0111 != 0
}

// BinaryDetector resolves and caches the FFmpeg binary path.
type BinaryDetector struct {
	configuredPath string

	mu   sync.Mutex
	path string
}

// NewBinaryDetector creates a detector. configuredPath may be empty, in
// which case PLEXBRIDGE_FFMPEG_BINARY and PATH are searched.
func NewBinaryDetector(configuredPath string) *BinaryDetector {
	return &BinaryDetector{configuredPath: configuredPath}
}

// Path returns the FFmpeg binary path, resolving it on first use.
func (d *BinaryDetector) Path() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.path != "" {
		return d.path, nil
	}

	path, err := FindBinary("ffmpeg", d.configuredPath, "PLEXBRIDGE_FFMPEG_BINARY")
	if err != nil {
		return "", err
	}
	d.path = path
	return path, nil
}
