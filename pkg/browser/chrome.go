package browser

import (
	"os"
	"os/exec"
	"path/filepath"

	"github.com/jmylchreest/livegate/internal/logger"
)

// Chrome binary names looked up on PATH.
var chromeCommands = []string{
	"google-chrome-stable",
	"google-chrome",
	"chromium",
	"chromium-browser",
	"chrome",
}

// Well-known install locations.
var chromeLocations = []string{
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	"/Applications/Chromium.app/Contents/MacOS/Chromium",
	"/usr/bin/google-chrome-stable",
	"/usr/bin/chromium",
	"/snap/bin/chromium",
	`C:\Program Files\Google\Chrome\Application\chrome.exe`,
	`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
}

// FindChromePath returns the first Chrome/Chromium binary found, checking
// $LIVEGATE_CHROME, PATH and then common install locations. It returns ""
// when none is found.
func FindChromePath() string {
	if p := os.Getenv("LIVEGATE_CHROME"); p != "" && isExecutable(p) {
		return p
	}
	for _, name := range chromeCommands {
		if path, err := exec.LookPath(name); err == nil {
			logger.Debug("found Chrome binary", "name", name, "path", path)
			return path
		}
	}
	for _, path := range chromeLocations {
		if isExecutable(path) {
			logger.Debug("found Chrome binary", "path", path)
			return path
		}
	}
	logger.Warn("no Chrome binary found")
	return ""
}

func isExecutable(path string) bool {
	if !filepath.IsAbs(path) {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
