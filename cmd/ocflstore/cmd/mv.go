package cmd

import (
	"context"

	"github.com/muesli/coral"
)

var mvCmd = &coral.Command{
	Use:   "mv [id] [target-id]",
	Short: "move an object to a new id",
	Long:  "mv renames an object's directory to the path dispersed from the target id and rewrites its inventory id.",
	Args:  coral.ExactArgs(2),
	Run: func(cmd *coral.Command, args []string) {
		runMv(cmd.Context(), args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(mvCmd)
}

func runMv(ctx context.Context, id string, targetID string) {
	root, closeFn, err := getStorageRoot(ctx)
	if err != nil {
		log.Error(err, "could not open storage root")
		return
	}
	defer closeFn()
	obj, err := root.GetObject(ctx, id)
	if err != nil {
		log.Error(err, "retrieving object", "id", id)
		return
	}
	if obj == nil {
		log.Info("object not found", "id", id)
		return
	}
	if err := root.MoveObject(ctx, obj, targetID); err != nil {
		log.Error(err, "moving object", "id", id, "target", targetID)
		return
	}
	log.Info("moved object", "id", targetID, "path", obj.Path())
}
