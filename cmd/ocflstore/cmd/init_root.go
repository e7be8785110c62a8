package cmd

import (
	"context"

	"github.com/muesli/coral"
	ocfl "github.com/srerickson/ocflstore"
)

var initRootFlags = struct {
	readme        string
	storageReadme string
}{}

var initRootCmd = &coral.Command{
	Use:   "init-root",
	Short: "initialize an OCFL storage root",
	Long:  "init-root creates the named repo as an OCFL storage root with declaration tags.",
	Run: func(cmd *coral.Command, args []string) {
		runInitRoot(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(initRootCmd)
	initRootCmd.Flags().StringVar(&initRootFlags.readme, "readme", "", "text for the conformance declaration readme")
	initRootCmd.Flags().StringVar(&initRootFlags.storageReadme, "storage-readme", "", "text for the storage scheme readme")
}

func runInitRoot(ctx context.Context) {
	root, closeFn, err := getStorageRoot(ctx)
	if err != nil {
		log.Error(err, "could not initialize storage driver", "repo", rootFlags.repoName)
		return
	}
	defer closeFn()
	err = root.Init(ctx, &ocfl.InitRootConf{
		Readme:        initRootFlags.readme,
		StorageReadme: initRootFlags.storageReadme,
	})
	if err != nil {
		log.Error(err, "during storage root initialization")
		return
	}
	log.Info("storage root initialized", "path", root.Path(), "scheme", root.Scheme())
}
