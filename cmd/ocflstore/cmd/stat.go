package cmd

import (
	"context"
	"fmt"

	"github.com/muesli/coral"
)

var statCmd = &coral.Command{
	Use:   "stat [id]",
	Short: "show storage root or object details",
	Args:  coral.MaximumNArgs(1),
	Run: func(cmd *coral.Command, args []string) {
		if len(args) == 0 {
			runStatRoot(cmd.Context())
			return
		}
		runStatObject(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(statCmd)
}

func runStatRoot(ctx context.Context) {
	root, closeFn, err := getStorageRoot(ctx)
	if err != nil {
		log.Error(err, "could not open storage root")
		return
	}
	defer closeFn()
	count, err := root.CountObjects(ctx)
	if err != nil {
		log.Error(err, "counting objects")
		return
	}
	fmt.Printf("storage root: %s\n", root.Path())
	fmt.Printf("scheme: %s\n", root.Scheme())
	fmt.Printf("objects: %d\n", count)
}

func runStatObject(ctx context.Context, id string) {
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
	inv := obj.Inventory()
	fmt.Printf("id: %s\n", inv.ID)
	fmt.Printf("path: %s\n", obj.Path())
	fmt.Printf("digest algorithm: %s\n", inv.DigestAlgorithm)
	fmt.Printf("head: %s\n", inv.Head)
	for _, v := range inv.VersionNums() {
		entry := inv.Version(v)
		fmt.Printf("%s: %s (%d files)\n", v, entry.Created, entry.State.NumPaths())
	}
}
