package cmd

import (
	"context"
	"fmt"

	"github.com/muesli/coral"
)

var lsFlags = struct {
	withID bool
}{}

var lsCmd = &coral.Command{
	Use:   "ls",
	Short: "list objects in the storage root",
	Run: func(cmd *coral.Command, args []string) {
		runLS(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(lsCmd)
	lsCmd.Flags().BoolVar(&lsFlags.withID, "id", false, "also print each object's logical id")
}

func runLS(ctx context.Context) {
	root, closeFn, err := getStorageRoot(ctx)
	if err != nil {
		log.Error(err, "could not open storage root")
		return
	}
	defer closeFn()
	err = root.EachObjectPath(ctx, func(objPath string) error {
		if !lsFlags.withID {
			fmt.Println(objPath)
			return nil
		}
		obj, err := root.GetObjectPath(ctx, objPath)
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%s\n", obj.ID(), objPath)
		return nil
	})
	if err != nil {
		log.Error(err, "listing objects")
	}
}
