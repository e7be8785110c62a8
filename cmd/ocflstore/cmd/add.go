package cmd

import (
	"context"

	"github.com/muesli/coral"
	ocfl "github.com/srerickson/ocflstore"
	"github.com/srerickson/ocflstore/backend/local"
)

var addFlags = struct {
	id string
}{}

var addCmd = &coral.Command{
	Use:   "add [dir]",
	Short: "add an object to the storage root",
	Long:  "add copies an existing OCFL object into the storage root at the directory dispersed from its id.",
	Args:  coral.ExactArgs(1),
	Run: func(cmd *coral.Command, args []string) {
		runAdd(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
	addCmd.Flags().StringVar(&addFlags.id, "id", "", "overwrite the object's id before adding")
}

func runAdd(ctx context.Context, dir string) {
	root, closeFn, err := getStorageRoot(ctx)
	if err != nil {
		log.Error(err, "could not open storage root")
		return
	}
	defer closeFn()
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
	if err := root.AddObject(ctx, obj, addFlags.id); err != nil {
		log.Error(err, "adding object to storage root", "dir", dir)
		return
	}
	log.Info("added object", "id", obj.ID(), "path", obj.Path())
}
