package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mwantia/goremote/pkg/configmgr"
	"github.com/mwantia/goremote/pkg/db/models"
	"github.com/mwantia/goremote/pkg/localfs"
	"github.com/mwantia/goremote/pkg/log"
	"github.com/mwantia/goremote/pkg/metrics"
	"github.com/mwantia/goremote/pkg/remote"
)

// ClientOptions are the interactive parts of a remote client.
type ClientOptions struct {
	Monitor  remote.OperationMonitor
	Resolver remote.ConflictResolver
}

// Profile returns the named profile, or the current one for an empty name.
func (gra *GoRemoteAgent) Profile(name string) (*configmgr.Configuration, error) {
	manager := gra.Manager()
	if manager == nil {
		return nil, fmt.Errorf("agent has not been set up")
	}
	if name == "" {
		return manager.Current(), nil
	}
	profile := manager.Configuration(name)
	if profile == nil || !profile.Exists() {
		return nil, fmt.Errorf("%w: '%s'", configmgr.ErrUnknownConfig, name)
	}
	return profile, nil
}

// NewClient builds a remote client for profile. Profile flags take
// precedence over the transfer section of the configuration.
func (gra *GoRemoteAgent) NewClient(ctx context.Context, profile *configmgr.Configuration, opts ClientOptions) (*remote.Client, error) {
	if err := gra.validateProfile(profile); err != nil {
		return nil, fmt.Errorf("profile '%s' is invalid: %w", gra.ProfileName(profile.Name()), err)
	}

	provider, err := gra.registry.NewProvider(profile)
	if err != nil {
		return nil, err
	}

	logger, err := log.Resolve(ctx, gra.sc, "logger:remote")
	if err != nil {
		gra.log.Debug("Falling back to agent logger: %v", err)
		logger = gra.log.Named("remote")
	}

	transfer := gra.cfg.Transfer
	local := localfs.New(localfs.WithEditorSwapDetection())

	return remote.NewClient(provider, local, remote.Options{
		BaseLocalDirectory:  profile.Value(remote.SettingLocalDirectory),
		BaseRemoteDirectory: profile.Value(remote.SettingInitialDirectory),
		UploadDirectly:      remote.SettingBool(profile, remote.SettingUploadDirectly, transfer.UploadDirectly),
		PreservePermissions: remote.SettingBool(profile, remote.SettingPreservePermissions, transfer.PreservePermissions),
		RetryCount:          transfer.RetryCount,
		MemoryThreshold:     transfer.MemoryThreshold,
		TempDir:             transfer.TempDir,
		Visibility:          remote.NewVisibility(transfer.ShowHidden, transfer.Ignores...),
		Monitor:             opts.Monitor,
		Resolver:            opts.Resolver,
		Logger:              logger,
	}), nil
}

// Run prepares and executes one batch for the named paths, an empty list
// meaning the synchronization root. The outcome is recorded in the transfer
// history and the metrics.
func (gra *GoRemoteAgent) Run(ctx context.Context, client *remote.Client, profile string, op remote.Operation, names ...string) (*remote.TransferInfo, error) {
	started := time.Now()

	info, err := gra.run(ctx, client, op, names)
	if err != nil {
		metrics.ObserveError(err)
		return nil, err
	}

	metrics.ObserveBatch(op, info)
	if err := gra.record(ctx, profile, op, started, info); err != nil {
		gra.log.Warn("Unable to store transfer record: %v", err)
	}
	return info, nil
}

func (gra *GoRemoteAgent) run(ctx context.Context, client *remote.Client, op remote.Operation, names []string) (*remote.TransferInfo, error) {
	roots, err := resolveRoots(ctx, client, op, names)
	if err != nil {
		return nil, err
	}

	switch op {
	case remote.OperationUpload:
		set, err := client.PrepareUpload(ctx, roots...)
		if err != nil {
			return nil, err
		}
		return client.Upload(ctx, set)
	case remote.OperationDownload:
		set, err := client.PrepareDownload(ctx, roots...)
		if err != nil {
			return nil, err
		}
		return client.Download(ctx, set)
	case remote.OperationDelete:
		set, err := client.PrepareDelete(ctx, roots...)
		if err != nil {
			return nil, err
		}
		return client.Delete(ctx, set)
	default:
		return nil, fmt.Errorf("unknown operation '%s'", op)
	}
}

func resolveRoots(ctx context.Context, client *remote.Client, op remote.Operation, names []string) ([]*remote.TransferFile, error) {
	if len(names) == 0 {
		return []*remote.TransferFile{client.Root()}, nil
	}

	roots := make([]*remote.TransferFile, 0, len(names))
	for _, name := range names {
		var (
			file *remote.TransferFile
			err  error
		)
		if op == remote.OperationUpload {
			file, err = client.LocalFile(name)
		} else {
			file, err = client.RemoteFile(ctx, name)
		}
		if err != nil {
			return nil, err
		}
		roots = append(roots, file)
	}
	return roots, nil
}

func (gra *GoRemoteAgent) record(ctx context.Context, profile string, op remote.Operation, started time.Time, info *remote.TransferInfo) error {
	st := gra.Store()
	if st == nil {
		return nil
	}

	all := info.All()
	record := &models.TransferRecord{
		ID:              uuid.NewString(),
		Operation:       string(op),
		Profile:         profile,
		StartedAt:       started,
		RuntimeMs:       info.Runtime().Milliseconds(),
		Transferred:     len(info.TransferredFiles()),
		Failed:          len(info.FailedFiles()),
		PartiallyFailed: len(info.PartiallyFailedFiles()),
		Ignored:         len(info.IgnoredFiles()),
		Entries:         make([]models.TransferEntry, 0, len(all)),
	}
	for _, d := range all {
		record.Entries = append(record.Entries, models.TransferEntry{
			Path:    d.File.RelativePath(),
			Outcome: string(d.Outcome),
			Reason:  d.Reason,
		})
	}
	return st.CreateTransferRecord(ctx, record)
}
