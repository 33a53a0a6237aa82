package apps

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// DefaultDesktopDirs returns the XDG application directories, user first.
func DefaultDesktopDirs() []string {
	var dirs []string
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dataHome = filepath.Join(home, ".local", "share")
		}
	}
	if dataHome != "" {
		dirs = append(dirs, filepath.Join(dataHome, "applications"))
	}

	dataDirs := os.Getenv("XDG_DATA_DIRS")
	if dataDirs == "" {
		dataDirs = "/usr/local/share:/usr/share"
	}
	for _, d := range filepath.SplitList(dataDirs) {
		if d != "" {
			dirs = append(dirs, filepath.Join(d, "applications"))
		}
	}
	return dirs
}

// parseDesktopEntry reads the [Desktop Entry] group of a .desktop file.
// It reports ok=false for entries that should not be listed: non-applications
// and those marked Hidden or NoDisplay.
func parseDesktopEntry(id string, r io.Reader) (App, bool, error) {
	app := App{ID: id}
	inEntry := false
	typ := ""
	hidden := false

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			inEntry = line == "[Desktop Entry]"
			continue
		}
		if !inEntry {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		// Localized keys such as Name[de] are ignored.
		switch key {
		case "Type":
			typ = value
		case "Name":
			app.Name = value
		case "Comment":
			app.Comment = value
		case "Exec":
			app.Exec = stripFieldCodes(value)
		case "Keywords":
			for _, k := range strings.Split(value, ";") {
				if k = strings.TrimSpace(k); k != "" {
					app.Keywords = append(app.Keywords, k)
				}
			}
		case "NoDisplay", "Hidden":
			if strings.EqualFold(value, "true") {
				hidden = true
			}
		}
	}
	if err := sc.Err(); err != nil {
		return App{}, false, err
	}
	if typ != "Application" || hidden || app.Name == "" || app.Exec == "" {
		return App{}, false, nil
	}
	return app, true, nil
}

// stripFieldCodes removes %f, %U and similar placeholders from an Exec line.
func stripFieldCodes(exec string) string {
	fields := strings.Fields(exec)
	out := fields[:0]
	for _, f := range fields {
		if len(f) == 2 && f[0] == '%' {
			continue
		}
		out = append(out, strings.ReplaceAll(f, "%%", "%"))
	}
	return strings.Join(out, " ")
}

// scanDesktopDirs loads every listable .desktop entry. An id found in an
// earlier directory shadows later ones.
func scanDesktopDirs(dirs []string, logger *slog.Logger) []App {
	if logger == nil {
		logger = slog.Default()
	}
	seen := make(map[string]bool)
	var apps []App
	for _, dir := range dirs {
		matches, err := filepath.Glob(filepath.Join(dir, "*.desktop"))
		if err != nil {
			continue
		}
		for _, path := range matches {
			id := strings.TrimSuffix(filepath.Base(path), ".desktop")
			if seen[id] {
				continue
			}
			seen[id] = true

			app, ok, err := readDesktopFile(id, path)
			if err != nil {
				logger.Debug("desktop_entry_unreadable", slog.String("path", path), slog.String("error", err.Error()))
				continue
			}
			if ok {
				apps = append(apps, app)
			}
		}
	}
	return apps
}

func readDesktopFile(id, path string) (App, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return App{}, false, err
	}
	defer func() { _ = f.Close() }()

	app, ok, err := parseDesktopEntry(id, f)
	if err != nil {
		return App{}, false, fmt.Errorf("parse %s: %w", path, err)
	}
	return app, ok, nil
}
