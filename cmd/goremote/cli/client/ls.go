package client

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/mwantia/goremote/internal/agent"
	"github.com/mwantia/goremote/pkg/remote"
	"github.com/spf13/cobra"
)

func NewListCommand() *cobra.Command {
	var (
		profile       string
		humanReadable bool
		longFormat    bool
	)

	cmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List remote files",
		Long:  "List the visible entries of a remote directory, relative to the profile's initial directory.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer cancel()

			name := ""
			if len(args) > 0 {
				name = args[0]
			}

			return withAgent(ctx, func(gra *agent.GoRemoteAgent) error {
				p, err := gra.Profile(profile)
				if err != nil {
					return err
				}
				client, err := gra.NewClient(ctx, p, agent.ClientOptions{})
				if err != nil {
					return err
				}
				defer client.Disconnect(false)

				dir, err := client.RemoteFile(ctx, name)
				if err != nil {
					return err
				}
				files, err := client.List(ctx, dir)
				if err != nil {
					return err
				}

				printListing(cmd.OutOrStdout(), files, longFormat, humanReadable)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&profile, "profile", "p", "", "profile to use (default is the current profile)")
	cmd.Flags().BoolVarP(&humanReadable, "human", "H", false, "Enable human-readable format")
	cmd.Flags().BoolVarP(&longFormat, "long", "l", false, "Display long format")

	return cmd
}

func printListing(out io.Writer, files []*remote.TransferFile, long, human bool) {
	if !long {
		for _, f := range files {
			fmt.Fprintln(out, listName(f))
		}
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, f := range files {
		size := fmt.Sprintf("%d", f.Size())
		modified := f.ModTime().Format("2006-01-02 15:04")
		if human {
			size = humanize.Bytes(uint64(max(f.Size(), 0)))
			modified = humanize.Time(f.ModTime())
		}
		if f.ModTime().IsZero() {
			modified = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", f.Kind(), size, modified, listName(f))
	}
	w.Flush()
}

func listName(f *remote.TransferFile) string {
	if f.IsDirectory() {
		return f.Name() + "/"
	}
	return f.Name()
}
