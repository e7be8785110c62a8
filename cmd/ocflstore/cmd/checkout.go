package cmd

import (
	"context"

	"github.com/muesli/coral"
	ocfl "github.com/srerickson/ocflstore"
	"github.com/srerickson/ocflstore/backend/local"
)

var checkoutFlags = struct {
	version     string
	noOverwrite bool
}{}

var checkoutCmd = &coral.Command{
	Use:   "checkout [id] [dir]",
	Short: "reconstruct an object version into a directory",
	Long:  "checkout rebuilds the complete state of a version, resolving pruned files through the manifest to surviving ancestor copies.",
	Args:  coral.ExactArgs(2),
	Run: func(cmd *coral.Command, args []string) {
		runCheckout(cmd.Context(), args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(checkoutCmd)
	checkoutCmd.Flags().StringVar(&checkoutFlags.version, "version", "", "version to check out, e.g. v2 (default: latest)")
	checkoutCmd.Flags().BoolVar(&checkoutFlags.noOverwrite, "no-overwrite", false, "refuse to write into an existing, non-empty directory (an existing empty directory is still written into)")
}

func runCheckout(ctx context.Context, id string, dir string) {
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
	conf := &ocfl.CheckoutConf{Overwrite: !checkoutFlags.noOverwrite}
	if checkoutFlags.version != "" {
		var v ocfl.VNum
		if err := ocfl.ParseVNum(checkoutFlags.version, &v); err != nil {
			log.Error(err, "bad version", "version", checkoutFlags.version)
			return
		}
		conf.Version = v
	}
	dst, err := local.NewFS(dir)
	if err != nil {
		log.Error(err, "could not open destination", "dir", dir)
		return
	}
	if err := obj.Checkout(ctx, dst, ".", conf); err != nil {
		log.Error(err, "during checkout", "id", id, "dir", dir)
		return
	}
	log.Info("checked out", "id", id, "dir", dir)
}
