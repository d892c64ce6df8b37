package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/temple-recon/internal/api"
	"github.com/fpang/temple-recon/internal/auth"
	"github.com/fpang/temple-recon/internal/catalog"
	"github.com/fpang/temple-recon/internal/config"
	"github.com/fpang/temple-recon/internal/logging"
	"github.com/fpang/temple-recon/internal/recon"
)

// CLI flags
var (
	periodFlag  string
	labelFlag   string
	userFlag    string
	templesFlag []int
)

// rootCmd is the main Cobra command for the console.
var rootCmd = &cobra.Command{
	Use:   "recon-cli",
	Short: "Admin console for temple reconstruction jobs",
	Long: `recon-cli manages temple reconstruction jobs: grouping user-submitted
contributions into named groups, tracking per-group model uploads, and
submitting assembled reconstructions to the processing pipeline.

State is mirrored to a local JSON file between runs; list and refresh
pull the authoritative copy back from the pipeline.

Examples:
  recon-cli list
  recon-cli create --label "Main hall" --user admin --temples 10,12
  recon-cli group add recon-1712... "North wall"
  recon-cli staged recon-1712...
  recon-cli submit recon-1712...`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&periodFlag, "period", "", "Month scope YYYYMM (default: current month)")

	createCmd.Flags().StringVar(&labelFlag, "label", "", "Reconstruction label")
	createCmd.Flags().StringVar(&userFlag, "user", "", "Creator identifier")
	createCmd.Flags().IntSliceVar(&templesFlag, "temples", nil, "Source temple ids")

	rootCmd.AddCommand(listCmd, createCmd, deleteCmd, submitCmd, refreshCmd,
		stagedCmd, contributionsCmd, attachCmd, configCmd, groupCmd, uploadCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// console bundles the wired core for one command invocation.
type console struct {
	cfg      *config.Config
	registry *recon.Registry
	client   *api.Client
	catalog  *catalog.Cache
}

// setup loads configuration, resolves the API token, restores the local
// state mirror, and wires the client. Exits fatally on failure, in keeping
// with a CLI entry point.
func setup() *console {
	start := time.Now()
	logging.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if periodFlag != "" {
		cfg.Period = periodFlag
	}

	token := cfg.APIToken
	if token == "" {
		token, err = auth.GetToken()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to retrieve API token")
		}
	}

	registry := recon.NewRegistry()
	if err := registry.Restore(cfg.StatePath); err != nil {
		log.Fatal().Err(err).Msg("failed to restore local state")
	}

	client := api.NewClient(cfg.APIBaseURL, token)

	logging.NewStartupLogger("recon-cli").
		Endpoint("pipeline", cfg.APIBaseURL).
		Config("period", cfg.Period).
		Config("stateFile", cfg.StatePath).
		InitDuration(time.Since(start)).
		Log()

	return &console{
		cfg:      cfg,
		registry: registry,
		client:   client,
		catalog:  catalog.NewCache(client),
	}
}

// persist mirrors the registry back to the state file after a mutation.
func (c *console) persist() {
	if err := c.registry.Save(c.cfg.StatePath); err != nil {
		log.Error().Err(err).Msg("failed to persist local state")
	}
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List reconstructions for the period",
	Run: func(cmd *cobra.Command, args []string) {
		c := setup()
		records, err := c.client.ListReconstructions(context.Background(), c.cfg.Period)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to list reconstructions")
		}
		c.registry.SetReconstructions(records)
		c.persist()

		for _, r := range c.registry.Reconstructions() {
			fmt.Printf("%s  %-24s  %-7s  groups=%d  contributions=%d\n",
				r.ReconstructionID, r.Label, r.Status, len(r.Groups), len(r.Contributions))
		}
	},
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new reconstruction",
	Run: func(cmd *cobra.Command, args []string) {
		c := setup()
		r, err := c.registry.AddReconstruction(labelFlag, userFlag, templesFlag)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create reconstruction")
		}
		c.persist()
		fmt.Println(r.ReconstructionID)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <reconstruction-id>",
	Short: "Delete a reconstruction (refused once ready)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c := setup()
		if err := c.registry.RemoveReconstruction(context.Background(), c.client, args[0], c.cfg.Period); err != nil {
			log.Fatal().Err(err).Msg("failed to delete reconstruction")
		}
		c.persist()
	},
}

var submitCmd = &cobra.Command{
	Use:   "submit <reconstruction-id>",
	Short: "Submit a reconstruction to the pipeline",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c := setup()
		if err := c.registry.Submit(context.Background(), c.client, args[0]); err != nil {
			log.Fatal().Err(err).Msg("failed to submit reconstruction")
		}
		c.persist()
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh <reconstruction-id>",
	Short: "Reconcile one reconstruction from the pipeline's copy",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c := setup()
		detail, err := c.client.GetReconstruction(context.Background(), args[0], c.cfg.Period)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to fetch reconstruction detail")
		}
		c.registry.MergeDetail(detail)
		c.persist()
	},
}

var stagedCmd = &cobra.Command{
	Use:   "staged <reconstruction-id>",
	Short: "Report how many catalog contributions remain ungrouped",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c := setup()
		staged, err := c.registry.StagedCount(context.Background(), c.catalog, args[0])
		if err != nil {
			log.Fatal().Err(err).Msg("failed to compute staged count")
		}
		fmt.Println(staged)
	},
}

var (
	templeFlag   int
	pageFlag     int
	categoryFlag string
	searchFlag   string
)

var contributionsCmd = &cobra.Command{
	Use:   "contributions",
	Short: "Browse a temple's contribution catalog",
	Run: func(cmd *cobra.Command, args []string) {
		c := setup()
		if err := c.catalog.FetchPage(context.Background(), templeFlag, pageFlag, categoryFlag); err != nil {
			log.Fatal().Err(err).Msg("failed to fetch catalog page")
		}
		for _, item := range c.catalog.Search(searchFlag) {
			fmt.Printf("%6d  %-24s  %-16s  %s\n", item.ContributionID, item.Name, item.Category, item.TempleName)
		}
		if c.catalog.IsNext() {
			fmt.Printf("(more pages: rerun with --page %d)\n", pageFlag+1)
		}
	},
}

var attachCmd = &cobra.Command{
	Use:   "attach <reconstruction-id>",
	Short: "Attach a temple's full catalog as the contribution pool",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c := setup()
		ctx := context.Background()

		for page := 1; ; page++ {
			if err := c.catalog.FetchPage(ctx, templeFlag, page, ""); err != nil {
				log.Fatal().Err(err).Msg("failed to paginate catalog")
			}
			if !c.catalog.IsNext() {
				break
			}
		}
		pool := c.catalog.Items()

		if err := c.registry.UpdateReconstructionContributions(args[0], pool); err != nil {
			log.Fatal().Err(err).Msg("failed to attach contributions")
		}
		c.persist()
		fmt.Printf("attached %d contributions\n", len(pool))
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the global config registry",
}

var configAddCmd = &cobra.Command{
	Use:   "add <key> <value>",
	Short: "Register a processing config",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		c := setup()
		configs := append(c.registry.Configs(), recon.ConfigSelection{Key: args[0], Value: args[1]})
		c.registry.SetConfigs(configs)
		c.persist()
	},
}

var configSelectCmd = &cobra.Command{
	Use:   "select <reconstruction-id> <key>",
	Short: "Select a config for a reconstruction",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		c := setup()
		if err := c.registry.SelectConfig(args[0], args[1]); err != nil {
			log.Fatal().Err(err).Msg("failed to select config")
		}
		c.persist()
	},
}

func init() {
	contributionsCmd.Flags().IntVar(&templeFlag, "temple", 0, "Temple id")
	contributionsCmd.Flags().IntVar(&pageFlag, "page", 1, "Catalog page")
	contributionsCmd.Flags().StringVar(&categoryFlag, "category", "", "Server-side category filter")
	contributionsCmd.Flags().StringVar(&searchFlag, "search", "", "Local substring filter")
	attachCmd.Flags().IntVar(&templeFlag, "temple", 0, "Temple id")

	configCmd.AddCommand(configAddCmd, configSelectCmd)
}

// parseIDs converts command-line contribution id arguments.
func parseIDs(args []string) ([]int, error) {
	ids := make([]int, 0, len(args))
	for _, a := range args {
		for _, piece := range strings.Split(a, ",") {
			if piece == "" {
				continue
			}
			id, err := strconv.Atoi(piece)
			if err != nil {
				return nil, fmt.Errorf("invalid contribution id %q", piece)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}
