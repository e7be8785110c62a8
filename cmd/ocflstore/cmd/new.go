package cmd

import (
	"context"

	"github.com/muesli/coral"
	ocfl "github.com/srerickson/ocflstore"
	"github.com/srerickson/ocflstore/backend/local"
)

var newFlags = struct {
	id      string
	message string
	readme  string
}{}

var newCmd = &coral.Command{
	Use:   "new [dir]",
	Short: "convert a directory into an OCFL object",
	Long:  "new converts a plain directory, in place, into a version-1 OCFL object: existing contents move beneath v1/content/.",
	Args:  coral.ExactArgs(1),
	Run: func(cmd *coral.Command, args []string) {
		runNew(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(newCmd)
	newCmd.Flags().StringVar(&newFlags.id, "id", "", "logical id for the new object (default: generated)")
	newCmd.Flags().StringVar(&newFlags.message, "message", "", "message recorded with v1")
	newCmd.Flags().StringVar(&newFlags.readme, "readme", "", "text for the object declaration readme")
}

func runNew(ctx context.Context, dir string) {
	fsys, err := local.NewFS(dir)
	if err != nil {
		log.Error(err, "could not open directory", "dir", dir)
		return
	}
	obj, err := ocfl.NewObject(ctx, fsys, ".", ocfl.WithLogger(log))
	if err != nil {
		log.Error(err, "could not open object", "dir", dir)
		return
	}
	err = obj.Init(ctx, &ocfl.InitObjectConf{
		ID:             newFlags.id,
		VersionMessage: newFlags.message,
		Readme:         newFlags.readme,
	})
	if err != nil {
		log.Error(err, "during object conversion", "dir", dir)
		return
	}
	log.Info("created object", "id", obj.ID(), "dir", dir)
}
