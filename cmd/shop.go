package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/lukman83/dealscout/internal/models"
	"github.com/lukman83/dealscout/internal/platform"
	"github.com/lukman83/dealscout/internal/ui"
	"github.com/spf13/cobra"
)

var shopCmd = &cobra.Command{
	Use:   "shop [query]",
	Short: "Find sale items across brands and pick what fits the budget",
	Args:  cobra.ExactArgs(1),
	RunE:  runShop,
}

func init() {
	addShopFlags(shopCmd)
	shopCmd.Flags().String("format", "table", "Output format: json, table")
	rootCmd.AddCommand(shopCmd)
}

func addShopFlags(c *cobra.Command) {
	c.Flags().String("size", "", "Wanted size, e.g. M or 28")
	c.Flags().StringSlice("brands", []string{string(models.Aritzia), string(models.Reformation), string(models.FreePeople)}, "Brands to search")
	c.Flags().Float64("cap", -1, "Budget cap in dollars (default from config)")
	c.Flags().Int("limit", models.DefaultResultLimit, "Max results per brand")
	c.Flags().Float64("max-price", 0, "Drop single items above this price in dollars")
	c.Flags().Bool("save", false, "Write the selected deals to the record store")
}

// shopRequestFromFlags reads the flags added by addShopFlags.
func shopRequestFromFlags(cmd *cobra.Command, query string) (models.ScrapeRequest, error) {
	size, _ := cmd.Flags().GetString("size")
	names, _ := cmd.Flags().GetStringSlice("brands")
	capDollars, _ := cmd.Flags().GetFloat64("cap")
	limit, _ := cmd.Flags().GetInt("limit")
	maxPrice, _ := cmd.Flags().GetFloat64("max-price")

	ids, err := parseBrands(names)
	if err != nil {
		return models.ScrapeRequest{}, err
	}
	budgetCap := defaultCap()
	if capDollars >= 0 {
		budgetCap = models.FromDollars(capDollars)
	}
	return models.NewScrapeRequest(query, size, ids, budgetCap, limit, models.FromDollars(maxPrice))
}

func parseBrands(names []string) ([]models.BrandID, error) {
	ids := make([]models.BrandID, 0, len(names))
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		id, err := models.ParseBrand(n)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func defaultCap() models.Cents {
	return models.FromDollars(cfg.Run.DefaultCap)
}

func runShop(cmd *cobra.Command, args []string) error {
	req, err := shopRequestFromFlags(cmd, args[0])
	if err != nil {
		return err
	}
	save, _ := cmd.Flags().GetBool("save")
	format, _ := cmd.Flags().GetString("format")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	engine, closeStore, err := buildEngine(ctx)
	if err != nil {
		return err
	}
	defer closeStore()
	if save && !engine.HasStore() {
		return fmt.Errorf("--save needs a record store; set DEALSCOUT_STORE or --store")
	}

	spin := ui.NewSpinner(os.Stderr)
	spin.Start(fmt.Sprintf("Shopping '%s' across %d brands...", req.Query, len(req.Brands)))
	ctx = platform.WithProgress(ctx, spin.Update)
	res, err := engine.Run(ctx, req, save)
	spin.Stop()
	if res == nil {
		return fmt.Errorf("shop failed: %w", err)
	}
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("shop failed: %w", err)
	}

	resp := models.NewPartialShopResponse(res, err)
	switch format {
	case "json":
		if perr := printJSON(resp); perr != nil {
			return perr
		}
	default:
		printShopTable(os.Stdout, resp, res.PersistError)
	}
	if err != nil {
		return fmt.Errorf("run interrupted, showing partial result: %w", err)
	}
	return nil
}
