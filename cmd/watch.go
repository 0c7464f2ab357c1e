package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lukman83/dealscout/internal/logging"
	"github.com/lukman83/dealscout/internal/models"
	"github.com/lukman83/dealscout/internal/orchestrator"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch [query]",
	Short: "Re-run a shop query on a schedule and save what it picks",
	Long:  "Runs the same shop request on a cron schedule (e.g. \"@daily\" or \"0 9 * * *\") and writes the selection to the record store every time.",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	addShopFlags(watchCmd)
	watchCmd.Flags().String("schedule", "@daily", "Cron spec or descriptor")
	watchCmd.Flags().Bool("now", false, "Also run once immediately")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	const op = "cmd.watch"

	req, err := shopRequestFromFlags(cmd, args[0])
	if err != nil {
		return err
	}
	schedule, _ := cmd.Flags().GetString("schedule")
	now, _ := cmd.Flags().GetBool("now")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, closeStore, err := buildEngine(ctx)
	if err != nil {
		return err
	}
	defer closeStore()
	if !engine.HasStore() {
		return fmt.Errorf("watch saves every run and needs a record store; set DEALSCOUT_STORE or --store")
	}

	wlog := log.With(slog.String("op", op), slog.String("query", req.Query), slog.String("schedule", schedule))
	job := func() { watchOnce(ctx, engine, req, wlog) }

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(schedule, job); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	c.Start()
	wlog.Info("watching")

	if now {
		go job()
	}

	<-ctx.Done()
	wlog.Info("stopping")
	<-c.Stop().Done()
	return nil
}

func watchOnce(ctx context.Context, engine *orchestrator.Engine, req models.ScrapeRequest, log *slog.Logger) {
	res, err := engine.Run(ctx, req, true)
	if err != nil {
		log.Error("run failed", logging.Err(err))
		if res == nil {
			return
		}
	}
	log.Info("run done",
		slog.String("run_id", res.RunID),
		slog.Int("selected", len(res.Allocation.Selected)),
		slog.String("spend", res.Allocation.TotalSpend.String()),
		slog.Int("upserts", res.Upserts()),
		slog.String("persist_error", res.PersistError),
	)
}
