package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/lukman83/dealscout/internal/models"
	"github.com/lukman83/dealscout/internal/store"
	"github.com/spf13/cobra"
)

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Show selected spend for a month against the cap",
	RunE:  runBudget,
}

var pickCmd = &cobra.Command{
	Use:   "pick [product-url]",
	Short: "Mark a saved item as selected so it counts toward the monthly budget",
	Args:  cobra.ExactArgs(1),
	RunE:  runPick,
}

func init() {
	budgetCmd.Flags().String("month", "", "First day of the month, YYYY-MM-01 (default: current month)")
	budgetCmd.Flags().Float64("cap", -1, "Budget cap in dollars (default from config)")
	budgetCmd.Flags().String("format", "table", "Output format: json, table")
	rootCmd.AddCommand(budgetCmd)

	pickCmd.Flags().Bool("undo", false, "Clear the selection instead")
	rootCmd.AddCommand(pickCmd)
}

func runBudget(cmd *cobra.Command, args []string) error {
	month, _ := cmd.Flags().GetString("month")
	capDollars, _ := cmd.Flags().GetFloat64("cap")
	format, _ := cmd.Flags().GetString("format")

	if month == "" {
		month = models.MonthKey(time.Now())
	} else if _, err := time.Parse(time.DateOnly, month); err != nil {
		return fmt.Errorf("month must be YYYY-MM-DD: %w", err)
	}
	budgetCap := defaultCap()
	if capDollars >= 0 {
		budgetCap = models.FromDollars(capDollars)
	}

	writer, closeStore, err := buildStore(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()
	if writer == nil {
		return fmt.Errorf("no record store configured; set DEALSCOUT_STORE or --store")
	}

	sum, err := writer.Summary(cmd.Context(), month, budgetCap)
	if err != nil {
		return fmt.Errorf("budget summary: %w", err)
	}
	if format == "json" {
		return printJSON(sum)
	}
	printBudget(os.Stdout, sum)
	return nil
}

func runPick(cmd *cobra.Command, args []string) error {
	undo, _ := cmd.Flags().GetBool("undo")

	writer, closeStore, err := buildStore(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()
	sel, ok := writer.(store.Selector)
	if !ok {
		return fmt.Errorf("the configured record store does not support selection")
	}
	if err := sel.SetSelected(cmd.Context(), args[0], !undo); err != nil {
		return fmt.Errorf("pick: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), " selected=%v %s\n", !undo, cleanURL(args[0]))
	return nil
}
