// File: internal/browser/options.go
package browser

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/avasilev/shopbridge/internal/config"
)

const (
	defaultViewportWidth  = 1280
	defaultViewportHeight = 900
)

// allocatorFlags computes the Chrome command line switches for cfg. Boolean
// switches map to true, valued switches to their string value.
func allocatorFlags(cfg config.BrowserConfig) map[string]interface{} {
	flags := map[string]interface{}{
		"no-first-run":                   true,
		"no-default-browser-check":       true,
		"no-sandbox":                     true,
		"disable-gpu":                    true,
		"disable-dev-shm-usage":          true,
		"disable-background-networking":  true,
		"disable-popup-blocking":         true,
		"disable-extensions":             true,
		"disable-sync":                   true,
		"metrics-recording-only":         true,
		"mute-audio":                     true,
		"enable-automation":              true,
		"password-store":                 "basic",
		"use-mock-keychain":              true,
		"disable-features":               "site-per-process,Translate,OptimizationHints",
		"disable-renderer-backgrounding": true,
	}

	if cfg.Headless {
		flags["headless"] = true
		flags["hide-scrollbars"] = true
	} else {
		flags["headless"] = false
	}

	if cfg.DisableCache {
		flags["disk-cache-size"] = "0"
		flags["media-cache-size"] = "0"
		flags["disable-cache"] = true
	}

	if cfg.IgnoreTLSErrors {
		flags["ignore-certificate-errors"] = true
		flags["allow-insecure-localhost"] = true
	}

	width, height := viewport(cfg)
	flags["window-size"] = fmt.Sprintf("%d,%d", width, height)

	for _, arg := range cfg.Args {
		key, value, found := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if key == "" {
			continue
		}
		if found {
			flags[key] = value
		} else {
			flags[key] = true
		}
	}
	return flags
}

// DefaultAllocatorOptions converts the browser configuration into chromedp
// exec allocator options.
func DefaultAllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	flags := allocatorFlags(cfg)

	names := make([]string, 0, len(flags))
	for name := range flags {
		names = append(names, name)
	}
	sort.Strings(names)

	opts := make([]chromedp.ExecAllocatorOption, 0, len(names)+1)
	for _, name := range names {
		opts = append(opts, chromedp.Flag(name, flags[name]))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}

// viewport returns the configured window size, falling back to a desktop default.
func viewport(cfg config.BrowserConfig) (int, int) {
	width, height := defaultViewportWidth, defaultViewportHeight
	if w, ok := cfg.Viewport["width"]; ok && w > 0 {
		width = w
	}
	if h, ok := cfg.Viewport["height"]; ok && h > 0 {
		height = h
	}
	return width, height
}
