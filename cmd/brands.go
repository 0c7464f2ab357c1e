package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/lukman83/dealscout/internal/brands"
	"github.com/lukman83/dealscout/internal/platform"
	"github.com/spf13/cobra"
)

var brandsCmd = &cobra.Command{
	Use:   "brands",
	Short: "List supported retailers and their sale pages",
	RunE:  runBrands,
}

func init() {
	brandsCmd.Flags().String("format", "table", "Output format: json, table")
	rootCmd.AddCommand(brandsCmd)
}

type brandInfo struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	SaleURL    string   `json:"saleUrl"`
	SortLabels []string `json:"sortLabels"`
}

func runBrands(cmd *cobra.Command, args []string) error {
	brands.RegisterDefaults()
	format, _ := cmd.Flags().GetString("format")

	var out []brandInfo
	for _, id := range platform.List() {
		site, err := platform.Get(id)
		if err != nil {
			return err
		}
		out = append(out, brandInfo{
			ID:         string(site.ID),
			Name:       site.DisplayName,
			SaleURL:    brands.SaleURL(site),
			SortLabels: site.SortLabels,
		})
	}

	if format == "json" {
		return printJSON(out)
	}
	for _, b := range out {
		fmt.Fprintf(os.Stdout, " %-12s %-12s %s  (sort: %s)\n", b.ID, b.Name, b.SaleURL, strings.Join(b.SortLabels, ", "))
	}
	return nil
}
