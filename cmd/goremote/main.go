package main

import (
	"fmt"
	"os"

	"github.com/mwantia/goremote/cmd/goremote/cli"
	"github.com/mwantia/goremote/cmd/goremote/cli/client"
	"github.com/mwantia/goremote/cmd/goremote/cli/server"
)

var (
	version = "0.0.1-dev"
	commit  = "main"
)

func main() {
	root := cli.NewRootCommand(cli.VersionInfo{
		Version: version,
		Commit:  commit,
	})

	root.AddCommand(cli.NewVersionCommand())

	root.AddCommand(client.NewUploadCommand())
	root.AddCommand(client.NewDownloadCommand())
	root.AddCommand(client.NewDeleteCommand())
	root.AddCommand(client.NewListCommand())
	root.AddCommand(client.NewProfileCommand())
	root.AddCommand(client.NewHistoryCommand())

	root.AddCommand(server.NewAgentCommand())
	root.AddCommand(server.NewConfigCommand())

	if err := root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
