package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/coral"
	ocfl "github.com/srerickson/ocflstore"
)

var fixityFlags = struct {
	algo        string
	useManifest bool
	id          string
}{}

var (
	okStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("10"))
	failStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("9"))
	pathStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#999999"))
)

var fixityCmd = &coral.Command{
	Use:   "fixity",
	Short: "fixity operations",
}

var fixityCheckCmd = &coral.Command{
	Use:   "check",
	Short: "verify recorded fixity",
	Long:  "check recomputes digests and compares them to recorded fixity, reporting per-file discrepancies.",
	Run: func(cmd *coral.Command, args []string) {
		runFixityCheck(cmd.Context())
	},
}

var fixityCalcCmd = &coral.Command{
	Use:   "calc",
	Short: "calculate and record fixity",
	Run: func(cmd *coral.Command, args []string) {
		runFixityCalc(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(fixityCmd)
	fixityCmd.AddCommand(fixityCheckCmd)
	fixityCmd.AddCommand(fixityCalcCmd)
	fixityCmd.PersistentFlags().StringVar(&fixityFlags.algo, "algo", "", "fixity digest algorithm (default: md5)")
	fixityCmd.PersistentFlags().BoolVar(&fixityFlags.useManifest, "use-manifest", false, "use manifest digests instead of recomputing")
	fixityCmd.PersistentFlags().StringVar(&fixityFlags.id, "id", "", "limit to a single object")
}

func fixityConf() *ocfl.FixityConf {
	return &ocfl.FixityConf{
		Algorithm:         fixityFlags.algo,
		UseManifestDigest: fixityFlags.useManifest,
	}
}

func runFixityCheck(ctx context.Context) {
	root, closeFn, err := getStorageRoot(ctx)
	if err != nil {
		log.Error(err, "could not open storage root")
		return
	}
	defer closeFn()
	if fixityFlags.id != "" {
		obj, err := root.GetObject(ctx, fixityFlags.id)
		if err != nil || obj == nil {
			log.Error(err, "retrieving object", "id", fixityFlags.id)
			return
		}
		result, err := obj.CheckFixity(ctx, fixityConf())
		if err != nil {
			log.Error(err, "checking fixity", "id", fixityFlags.id)
			return
		}
		printFixityResult(obj.ID(), result)
		return
	}
	failed, err := root.CheckFixity(ctx, fixityConf())
	if err != nil {
		log.Error(err, "checking fixity")
		return
	}
	if len(failed) == 0 {
		fmt.Println(okStyle.Render("ok") + " all objects passed fixity check")
		return
	}
	ids := make([]string, 0, len(failed))
	for id := range failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		printFixityResult(id, failed[id])
	}
}

func printFixityResult(id string, result *ocfl.FixityResult) {
	if result.OK() {
		fmt.Printf("%s %s (%s)\n", okStyle.Render("ok"), id, result.Algorithm)
		return
	}
	if result.NoFixity {
		fmt.Printf("%s %s: no fixity digests for algorithm %s\n", failStyle.Render("??"), id, result.Algorithm)
		return
	}
	fmt.Printf("%s %s (%s)\n", failStyle.Render("FAIL"), id, result.Algorithm)
	for digest, paths := range result.Failures {
		for _, p := range paths {
			fmt.Printf("  %s %s\n", digest, pathStyle.Render(p))
		}
	}
}

func runFixityCalc(ctx context.Context) {
	root, closeFn, err := getStorageRoot(ctx)
	if err != nil {
		log.Error(err, "could not open storage root")
		return
	}
	defer closeFn()
	if fixityFlags.id != "" {
		obj, err := root.GetObject(ctx, fixityFlags.id)
		if err != nil || obj == nil {
			log.Error(err, "retrieving object", "id", fixityFlags.id)
			return
		}
		if _, err := obj.CalcFixity(ctx, fixityConf()); err != nil {
			log.Error(err, "calculating fixity", "id", fixityFlags.id)
			return
		}
		log.Info("fixity recorded", "id", obj.ID())
		return
	}
	if err := root.CalcFixity(ctx, fixityConf()); err != nil {
		log.Error(err, "calculating fixity")
		return
	}
	log.Info("fixity recorded for all objects")
}
