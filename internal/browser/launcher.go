package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/OCAP2/roverwatch/internal/config"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Launcher owns the Chrome process (or a remote connection) for one run.
type Launcher struct {
	cfg      config.BrowserConfig
	timeouts config.Timeouts
	logger   *slog.Logger

	launcher *launcher.Launcher
	browser  *rod.Browser
}

// NewLauncher creates a launcher. Nothing is started until Start.
func NewLauncher(cfg config.BrowserConfig, timeouts config.Timeouts, logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{cfg: cfg, timeouts: timeouts, logger: logger.With("component", "browser")}
}

// Start connects to browser.controlUrl when set, otherwise launches a local
// Chrome.
func (l *Launcher) Start(ctx context.Context) error {
	if l.browser != nil {
		return errors.New("browser already started")
	}

	controlURL := l.cfg.ControlURL
	if controlURL == "" {
		lc := launcher.New().
			Context(ctx).
			Headless(l.cfg.Headless).
			NoSandbox(l.cfg.NoSandbox)
		if l.cfg.Bin != "" {
			lc = lc.Bin(l.cfg.Bin)
		}
		u, err := lc.Launch()
		if err != nil {
			return fmt.Errorf("launch chrome: %w", err)
		}
		l.launcher = lc
		controlURL = u
		l.logger.Debug("Launched chrome", "controlUrl", controlURL, "headless", l.cfg.Headless)
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		l.cleanup()
		return fmt.Errorf("connect to chrome: %w", err)
	}
	l.browser = b
	l.logger.Info("Connected to chrome", "controlUrl", controlURL)
	return nil
}

// NewSession opens a blank tab sized to the configured viewport.
func (l *Launcher) NewSession(ctx context.Context) (*Session, error) {
	if l.browser == nil {
		return nil, errors.New("browser not started")
	}

	page, err := l.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             l.cfg.ViewportWidth,
		Height:            l.cfg.ViewportHeight,
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}); err != nil {
		l.logger.Warn("Failed to set viewport", "error", err)
	}

	return NewSession(page, l.cfg.NavigationTimeout, l.timeouts.Click), nil
}

// Close disconnects from the browser and stops a locally launched process.
func (l *Launcher) Close() error {
	var err error
	if l.browser != nil {
		err = l.browser.Close()
		l.browser = nil
	}
	l.cleanup()
	if err != nil {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}

func (l *Launcher) cleanup() {
	if l.launcher == nil {
		return
	}
	l.launcher.Kill()
	l.launcher.Cleanup()
	l.launcher = nil
}
