package client

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/mwantia/goremote/internal/agent"
	"github.com/mwantia/goremote/pkg/remote"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type transferFlags struct {
	profile    string
	yes        bool
	noProgress bool
}

func NewUploadCommand() *cobra.Command {
	return newTransferCommand(remote.OperationUpload,
		"upload [path...]",
		"Upload local files to the remote server",
		`Upload local files or directories, relative to the profile's local
directory, to the remote server. Without arguments the whole local
directory is uploaded.`)
}

func NewDownloadCommand() *cobra.Command {
	return newTransferCommand(remote.OperationDownload,
		"download [path...]",
		"Download remote files into the local directory",
		`Download remote files or directories, relative to the profile's
initial directory, into the local directory. Without arguments the whole
remote directory is downloaded.`)
}

func NewDeleteCommand() *cobra.Command {
	cmd := newTransferCommand(remote.OperationDelete,
		"delete <path...>",
		"Delete files on the remote server",
		`Delete remote files or directories, relative to the profile's initial
directory. The initial directory itself is never deleted.`)
	cmd.Args = cobra.MinimumNArgs(1)
	return cmd
}

func newTransferCommand(op remote.Operation, use, short, long string) *cobra.Command {
	var flags transferFlags

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long:  long,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer cancel()

			return withAgent(ctx, func(gra *agent.GoRemoteAgent) error {
				return runTransfer(ctx, cmd.OutOrStdout(), gra, op, flags, args)
			})
		},
	}

	cmd.Flags().StringVarP(&flags.profile, "profile", "p", "", "profile to use (default is the current profile)")
	cmd.Flags().BoolVarP(&flags.yes, "yes", "y", false, "overwrite local files with unsaved changes without asking, editor swap files are kept")
	cmd.Flags().BoolVar(&flags.noProgress, "no-progress", false, "do not render a progress bar")

	return cmd
}

func runTransfer(ctx context.Context, out io.Writer, gra *agent.GoRemoteAgent, op remote.Operation, flags transferFlags, args []string) error {
	profile, err := gra.Profile(flags.profile)
	if err != nil {
		return err
	}

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	opts := agent.ClientOptions{
		Resolver: newConflictResolver(flags.yes, interactive),
	}
	if !flags.noProgress && interactive {
		opts.Monitor = newProgressMonitor(os.Stderr)
	}

	client, err := gra.NewClient(ctx, profile, opts)
	if err != nil {
		return err
	}
	defer client.Disconnect(false)

	stop := context.AfterFunc(ctx, client.Cancel)
	defer stop()

	info, err := gra.Run(ctx, client, profile.Name(), op, args...)
	if err != nil {
		return err
	}

	printTransferInfo(out, info)
	if client.IsCancelled() {
		return fmt.Errorf("%s was cancelled", op)
	}
	if info.HasAnyFailure() {
		return fmt.Errorf("%s finished with failures", op)
	}
	return nil
}
