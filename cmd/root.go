package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/lukman83/dealscout/config"
	"github.com/lukman83/dealscout/internal/ai"
	"github.com/lukman83/dealscout/internal/brands"
	"github.com/lukman83/dealscout/internal/browser"
	"github.com/lukman83/dealscout/internal/browserbase"
	"github.com/lukman83/dealscout/internal/challenge"
	"github.com/lukman83/dealscout/internal/extract"
	"github.com/lukman83/dealscout/internal/httputil"
	"github.com/lukman83/dealscout/internal/logging"
	"github.com/lukman83/dealscout/internal/navigator"
	"github.com/lukman83/dealscout/internal/normalize"
	"github.com/lukman83/dealscout/internal/orchestrator"
	"github.com/lukman83/dealscout/internal/platform"
	"github.com/lukman83/dealscout/internal/session"
	"github.com/lukman83/dealscout/internal/stealth"
	"github.com/lukman83/dealscout/internal/store"
	"github.com/lukman83/dealscout/internal/store/notion"
	"github.com/lukman83/dealscout/internal/store/postgres"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

var (
	cfg *config.Config
	log *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:               "dealscout",
	Short:             "DealScout - sale discovery and budget picker for clothing retailers",
	Long:              "Searches retailer sale pages through a stealth browser, extracts the listings and picks the best deals that fit a monthly budget.",
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("env", "", "Environment: local, dev, prod")
	rootCmd.PersistentFlags().String("provider", "", "Browser provider: browserbase, local")
	rootCmd.PersistentFlags().String("delay-profile", "", "Delay profile: cautious, normal, aggressive, none")
	rootCmd.PersistentFlags().Bool("respect-robots", true, "Respect robots.txt rules")
	rootCmd.PersistentFlags().String("proxy-mode", "", "Proxy mode for the local provider: decodo, custom, direct")
	rootCmd.PersistentFlags().String("proxy-file", "", "Path to proxy list file")
	rootCmd.PersistentFlags().String("store", "", "Record store: notion, postgres")
}

func initConfig(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	c, err := config.Load(path)
	if err != nil {
		return err
	}

	// Override from flags
	flags := cmd.Flags()
	if v, _ := flags.GetString("env"); v != "" {
		c.Env = v
	}
	if v, _ := flags.GetString("provider"); v != "" {
		c.Provider.Kind = v
	}
	if v, _ := flags.GetString("delay-profile"); v != "" {
		c.Run.DelayProfile = v
	}
	if flags.Changed("respect-robots") {
		c.RespectRobots, _ = flags.GetBool("respect-robots")
	}
	if v, _ := flags.GetString("proxy-mode"); v != "" {
		c.Proxy.Mode = v
	}
	if v, _ := flags.GetString("proxy-file"); v != "" {
		c.Proxy.File = v
	}
	if v, _ := flags.GetString("store"); v != "" {
		c.Store.Kind = v
	}

	cfg = c
	log = logging.Setup(cfg.Env)
	return nil
}

// buildProxies returns nil in direct mode.
func buildProxies() (*stealth.ProxyRotator, error) {
	switch cfg.Proxy.Mode {
	case "decodo":
		if cfg.Proxy.DecodoUsername == "" || cfg.Proxy.DecodoPassword == "" {
			return nil, fmt.Errorf("proxy mode decodo needs DECODO_USERNAME and DECODO_PASSWORD")
		}
		return stealth.NewProxyRotator([]stealth.ProxyProvider{
			&stealth.DecodoProvider{
				Username: cfg.Proxy.DecodoUsername,
				Password: cfg.Proxy.DecodoPassword,
				Country:  cfg.Proxy.DecodoCountry,
				City:     cfg.Proxy.DecodoCity,
			},
		}), nil
	case "custom":
		providers, err := stealth.LoadProxyFile(cfg.Proxy.File)
		if err != nil {
			return nil, err
		}
		return stealth.NewProxyRotator(providers), nil
	case "", "direct":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown proxy mode %q", cfg.Proxy.Mode)
	}
}

func buildProvider(proxies *stealth.ProxyRotator) (platform.Provider, error) {
	switch cfg.Provider.Kind {
	case "browserbase":
		return browserbase.New(
			cfg.Provider.BrowserbaseAPIKey,
			cfg.Provider.BrowserbaseProjectID,
			browserbase.WithBaseURL(cfg.Provider.BrowserbaseBaseURL),
			browserbase.WithLogger(log),
		)
	case "local":
		return &browser.LocalProvider{
			Headless: cfg.Provider.Headless,
			Proxies:  proxies,
			Log:      log,
		}, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider.Kind)
	}
}

// buildStore returns a nil writer when no store is configured. The returned
// close func is always safe to call.
func buildStore(ctx context.Context) (store.Writer, func(), error) {
	noop := func() {}
	switch cfg.Store.Kind {
	case "":
		return nil, noop, nil
	case "notion":
		c, err := notion.New(cfg.Store.NotionAPIKey, cfg.Store.NotionDatabaseID, notion.WithLogger(log))
		if err != nil {
			return nil, noop, err
		}
		return c, noop, nil
	case "postgres":
		s, err := postgres.New(ctx, cfg.Store.DatabaseURL, log)
		if err != nil {
			return nil, noop, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, noop, err
		}
		return s, s.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown store %q", cfg.Store.Kind)
	}
}

// buildEngine wires every component from cfg.
func buildEngine(ctx context.Context) (*orchestrator.Engine, func(), error) {
	brands.RegisterDefaults()

	fingerprints := stealth.NewFingerprintPool()
	proxies, err := buildProxies()
	if err != nil {
		return nil, nil, err
	}
	provider, err := buildProvider(proxies)
	if err != nil {
		return nil, nil, err
	}

	sessions := session.NewManager(provider, session.Options{
		Attempts:   cfg.Session.Attempts,
		Backoff:    cfg.Session.Backoff,
		RetryDelay: cfg.Session.RetryDelay,
	}, fingerprints, log)

	limiter := rate.NewLimiter(rate.Limit(cfg.Run.RatePerSecond), cfg.Run.RateBurst)

	robotsClient := httputil.NewHTTPClient(&stealth.Transport{
		Base:        &http.Transport{MaxIdleConns: 10, MaxIdleConnsPerHost: 2},
		Fingerprint: fingerprints,
		Proxy:       proxies,
		RateLimiter: rate.NewLimiter(rate.Limit(cfg.Run.RatePerSecond), cfg.Run.RateBurst),
	}, 10*time.Second)
	robots := stealth.NewRobotsChecker(robotsClient, cfg.RespectRobots)

	var extractor extract.ContentExtractor
	if cfg.Extraction.AnthropicAPIKey != "" {
		extractor = ai.NewClient(cfg.Extraction.AnthropicAPIKey, cfg.Extraction.AnthropicModel, ai.WithLogger(log))
	}
	strategies, err := extract.Build(cfg.Extraction.Chain, extract.Deps{
		Extractor: extractor,
		ScanLimit: cfg.Extraction.ScanLimit,
	})
	if err != nil {
		return nil, nil, err
	}

	writer, closeStore, err := buildStore(ctx)
	if err != nil {
		return nil, nil, err
	}

	engine := orchestrator.New(orchestrator.Deps{
		Sessions:   sessions,
		Navigator:  navigator.New(cfg.Navigation.Timeout, cfg.Navigation.SortTimeout, robots, log),
		Challenge:  challenge.New(cfg.Challenge.Interval, cfg.Challenge.Attempts, log),
		Chain:      extract.NewChain(log, strategies...),
		Normalizer: normalize.New(cfg.Pricing.MarkupMultiplier, log),
		Store:      writer,
		Log:        log,
	}, orchestrator.Options{
		MaxConcurrent: cfg.Run.MaxConcurrent,
		MaxItems:      cfg.Extraction.MaxItems,
		Limiter:       limiter,
		Delay:         stealth.NewHumanDelay(stealth.DelayProfile(cfg.Run.DelayProfile)),
	})
	return engine, closeStore, nil
}
