package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mwantia/goremote/pkg/metrics"
	"github.com/mwantia/goremote/pkg/remote"
	"github.com/rjeczalik/notify"
)

const (
	defaultInterval        = 5 * time.Minute
	defaultShutdownTimeout = 60 * time.Second
)

// Serve uploads the configured paths of the current profile every interval
// until ctx is done or the process is interrupted.
func (gra *GoRemoteAgent) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := gra.Setup(ctx); err != nil {
		return err
	}

	profile, err := gra.Profile("")
	if err != nil {
		return err
	}
	client, err := gra.NewClient(ctx, profile, ClientOptions{})
	if err != nil {
		return err
	}
	// Interrupts stop the batch between files.
	stop := context.AfterFunc(ctx, client.Cancel)
	defer stop()

	if addr := gra.cfg.Metrics.Address; addr != "" {
		gra.wait.Add(1)
		go func() {
			defer gra.wait.Done()
			gra.log.Info("Serving metrics on '%s'", addr)
			if err := metrics.Serve(ctx, addr); err != nil {
				gra.log.Error("Metrics server stopped: %v", err)
			}
		}()
	}

	interval := parseDuration(gra.cfg.Agent.Interval, defaultInterval)
	gra.log.Info("Uploading %d path(s) of profile '%s' every %s", len(gra.cfg.Agent.Paths), gra.ProfileName(profile.Name()), interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// A nil channel disables the watch cases below.
	var (
		events  <-chan notify.EventInfo
		settled <-chan time.Time
	)
	debounce := parseDuration(gra.cfg.Agent.Debounce, defaultDebounce)
	changes := newChangeSet(client.BaseLocalDirectory(), gra.cfg.Agent.Paths)
	tracker := newChangeTracker()
	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	if gra.cfg.Agent.Watch {
		ch, stopWatch, err := watchLocal(client.BaseLocalDirectory())
		if err != nil {
			gra.log.Warn("Watching disabled: %v", err)
		} else {
			defer stopWatch()
			events = ch
			gra.log.Info("Watching '%s' for changes", client.BaseLocalDirectory())
		}
	}

	gra.tick(ctx, client, profile.Name())
	for {
		select {
		case <-ctx.Done():
			return gra.shutdown(client)
		case <-ticker.C:
			gra.tick(ctx, client, profile.Name())
		case ev := <-events:
			if changes.add(ev.Path()) {
				timer.Reset(debounce)
				settled = timer.C
			}
		case <-settled:
			settled = nil
			gra.uploadChanges(ctx, client, profile.Name(), tracker, changes.flush())
		}
	}
}

func (gra *GoRemoteAgent) tick(ctx context.Context, client *remote.Client, profile string) {
	info, err := gra.Run(ctx, client, profile, remote.OperationUpload, gra.cfg.Agent.Paths...)
	if err != nil {
		var connErr *remote.ConnectionError
		if errors.As(err, &connErr) {
			gra.log.Error("Unable to connect: %v", err)
		} else {
			gra.log.Error("Upload failed: %v", err)
		}
		client.Disconnect(true)
		return
	}
	for _, d := range info.FailedFiles() {
		gra.log.Warn("Failed '%s': %s", d.File, d.Reason)
	}
}

func (gra *GoRemoteAgent) shutdown(client *remote.Client) error {
	gra.log.Info("Shutting down...")
	timeout := parseDuration(gra.cfg.ShutdownTimeout, defaultShutdownTimeout)

	shutdown, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.Disconnect(false); err != nil {
		gra.log.Debug("Disconnect returned: %v", err)
	}

	done := make(chan struct{})
	go func() {
		gra.wait.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdown.Done():
		return fmt.Errorf("timed out waiting for background services")
	}

	return gra.Close(shutdown)
}

func parseDuration(value string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
