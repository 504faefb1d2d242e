package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ayusman/handsign/internal/app"
	"github.com/ayusman/handsign/internal/metrics"
	"github.com/ayusman/handsign/internal/server"
	"github.com/ayusman/handsign/internal/store"
	"github.com/ayusman/handsign/internal/tray"
)

type runFlags struct {
	addr     string
	camera   int
	session  string
	webDir   string
	tray     bool
	detector string
}

func runCommand(c *cli) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the camera pipeline and the web interface",
		Long: `Open the camera, sample hand landmarks at the configured interval and
serve the control API, the event stream and the camera preview over HTTP.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f.apply(cmd, c)
			return runServe(cmd.Context(), c)
		},
	}

	cmd.Flags().StringVar(&f.addr, "addr", "", "HTTP listen address")
	cmd.Flags().IntVar(&f.camera, "camera", 0, "Camera device id")
	cmd.Flags().StringVar(&f.session, "session", "", "Stored session to load at startup")
	cmd.Flags().StringVar(&f.webDir, "web-dir", "", "Directory of static web files")
	cmd.Flags().BoolVar(&f.tray, "tray", false, "Show the system tray menu")
	cmd.Flags().StringVar(&f.detector, "detector-script", "", "Path to the MediaPipe detector script")
	return cmd
}

// apply copies explicitly set flags over the loaded configuration.
func (f *runFlags) apply(cmd *cobra.Command, c *cli) {
	flags := cmd.Flags()
	if flags.Changed("addr") {
		c.opts.Addr = f.addr
	}
	if flags.Changed("camera") {
		c.opts.CameraID = f.camera
	}
	if flags.Changed("session") {
		c.opts.Session = f.session
	}
	if flags.Changed("web-dir") {
		c.opts.WebDir = f.webDir
	}
	if flags.Changed("tray") {
		c.opts.Tray = f.tray
	}
	if flags.Changed("detector-script") {
		c.opts.DetectorScript = f.detector
	}
}

func runServe(ctx context.Context, c *cli) error {
	opts, logger := c.opts, c.logger

	if err := os.MkdirAll(opts.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.New(opts.DBPath)
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer st.Close()

	m := metrics.NewManager()
	a, err := app.New(app.Config{
		Options: opts,
		Store:   st,
		Metrics: m,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("start pipeline: %w", err)
	}
	defer a.Stop()

	webDir := opts.WebDir
	if webDir == "" {
		webDir = findWebDir(opts.DataDir)
	}
	if webDir != "" {
		logger.Info("serving static files", "dir", webDir)
	}

	srv := server.New(server.Config{
		StaticDir: webDir,
		Pipeline:  a.Pipeline(),
		Storage:   a.Storage(),
		Sessions:  a.Sessions(),
		Frames:    a.Frames(),
		Metrics:   m,
		Logger:    logger,
	})

	if !opts.Tray {
		return srv.Run(ctx, opts.Addr)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx, opts.Addr) })

	t := newTray(gctx, a, opts.Addr, logger, stop)
	updates, unsubscribe := a.Pipeline().Subscribe()
	defer unsubscribe()
	t.Update(a.Pipeline().Status())
	go t.Follow(updates)
	go func() {
		<-gctx.Done()
		t.Quit()
	}()

	// The tray owns the main thread until it quits.
	t.Run()
	stop()
	return g.Wait()
}

// newTray wires the tray menu to the running app.
func newTray(ctx context.Context, a *app.App, addr string, logger *slog.Logger, quit func()) *tray.Tray {
	p := a.Pipeline()
	t := tray.New()
	t.OnCollect(func() {
		if _, err := p.ToggleCollect(ctx); err != nil {
			logger.Warn("toggle collection failed", "error", err)
		}
	})
	t.OnTrain(func() {
		if err := p.StartTraining(); err != nil {
			logger.Warn("training not started", "error", err)
		}
	})
	t.OnLoad(func() {
		id, n, err := a.LoadLatest(ctx)
		if err != nil {
			logger.Warn("load latest session failed", "error", err)
			return
		}
		logger.Info("session loaded", "session", id, "examples", n)
	})
	t.OnOpen(func() {
		if err := openBrowser(browserURL(addr)); err != nil {
			logger.Warn("open browser failed", "error", err)
		}
	})
	t.OnQuit(quit)
	return t
}

// browserURL turns a listen address into a local URL.
func browserURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <dataDir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	// Check relative paths from current working directory
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	dataWebDir := filepath.Join(dataDir, "web")
	if info, err := os.Stat(dataWebDir); err == nil && info.IsDir() {
		return dataWebDir
	}

	return ""
}
