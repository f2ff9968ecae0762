package client

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/mwantia/goremote/pkg/remote"
)

// newConflictResolver asks before overwriting local files with unsaved
// changes. With yes every conflict is overwritten, without a terminal every
// conflict is skipped.
func newConflictResolver(yes, interactive bool) remote.ConflictResolver {
	return remote.ConflictResolverFunc(func(local string) remote.Resolution {
		if yes {
			return remote.ResolutionOverwrite
		}
		if !interactive {
			return remote.ResolutionSkip
		}

		prompt := promptui.Prompt{
			Label:     fmt.Sprintf("'%s' has unsaved changes, overwrite", local),
			IsConfirm: true,
		}
		if _, err := prompt.Run(); err != nil {
			if !errors.Is(err, promptui.ErrAbort) {
				fmt.Printf("Prompt failed: %v\n", err)
			}
			return remote.ResolutionSkip
		}
		return remote.ResolutionOverwrite
	})
}
