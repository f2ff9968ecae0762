package client

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/mwantia/goremote/pkg/remote"
)

// printTransferInfo prints the summary line followed by every file that did
// not transfer cleanly, grouped by outcome.
func printTransferInfo(out io.Writer, info *remote.TransferInfo) {
	fmt.Fprintln(out, headerStyle.Render(info.Summary()))

	groups := []struct {
		title   string
		style   lipgloss.Style
		entries []remote.Disposition
	}{
		{"Failed", failedStyle, info.FailedFiles()},
		{"Partially failed", partialStyle, info.PartiallyFailedFiles()},
		{"Ignored", ignoredStyle, info.IgnoredFiles()},
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, group := range groups {
		if len(group.entries) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s\n", group.style.Render(group.title+":"))
		for _, d := range group.entries {
			fmt.Fprintf(w, "  %s\t%s\n", displayPath(d.File.RelativePath()), d.Reason)
		}
	}
	w.Flush()
}

func displayPath(rel string) string {
	if rel == "" {
		return "."
	}
	return rel
}
