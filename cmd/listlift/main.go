package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/raine/listlift/config"
	"github.com/raine/listlift/internal/analytics"
	"github.com/raine/listlift/internal/api"
	"github.com/raine/listlift/internal/billing"
	"github.com/raine/listlift/internal/ebay"
	"github.com/raine/listlift/internal/export"
	"github.com/raine/listlift/internal/listing"
	"github.com/raine/listlift/internal/media"
	"github.com/raine/listlift/internal/model"
	"github.com/raine/listlift/internal/notify"
	"github.com/raine/listlift/internal/storage"
	"github.com/raine/listlift/internal/store"
)

// How often stored eBay credentials are checked for expiry while listening.
const tokenRefreshInterval = time.Minute

func main() {
	if err := run(); err != nil {
		log.Error().Err(err).Msg("listlift failed")
		os.Exit(1)
	}
}

func run() error {
	var (
		exportID    = flag.String("export", "", "write an export kit for the item with this id")
		marketplace = flag.String("marketplace", string(model.MarketplaceDepop), "export marketplace")
		outDir      = flag.String("out", "export", "export kit output directory")
		addPhoto    = flag.String("add-photo", "", "start a draft from this photo")
		label       = flag.String("label", "", "read brand, size and material from this label photo into the new draft")
		publishID   = flag.String("publish", "", "publish the item with this id to eBay using the cached policies")
		policies    = flag.String("policies", "", "path to a JSON file of eBay business policies to cache")
		signIn      = flag.Bool("signin", false, "link an eBay account")
		signOut     = flag.Bool("signout", false, "unlink the eBay account")
		syncPlan    = flag.Bool("sync-plan", false, "adopt the plan the backend has on record")
		upgrade     = flag.String("upgrade", "", "switch to this plan using -receipt and -signature")
		receipt     = flag.String("receipt", "", "path to a signed checkout receipt")
		signature   = flag.String("signature", "", "checkout receipt signature header")
		listen      = flag.Bool("listen", false, "listen for sale notifications until interrupted")
	)
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	config.LoadEnvFile()
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	closeLog, err := setupLogging(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer closeLog()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	backend, err := storage.Open(storage.Options{
		Kind:   cfg.Store.Backend,
		DBPath: cfg.Store.DBPath,
		Redis: storage.RedisConfig{
			Addr:      cfg.Store.RedisAddress(),
			Password:  cfg.Store.RedisPassword,
			DB:        cfg.Store.RedisDB,
			KeyPrefix: cfg.Store.RedisKeyPrefix,
		},
		Passphrase: cfg.Store.Key,
		SealedKeys: []string{store.AccountKey},
	})
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer backend.Close()

	st, err := store.Open(ctx, backend)
	if err != nil {
		return fmt.Errorf("failed to load local state: %w", err)
	}
	defer st.Close()
	log.Info().Str("backend", cfg.Store.Backend).Msg("local state loaded")

	client := api.NewClient(api.ClientOpts{BaseURL: cfg.API.BaseURL, Timeout: cfg.API.Timeout})
	if health, err := client.Health(ctx); err != nil {
		log.Warn().Err(err).Msg("backend health check failed")
	} else {
		log.Info().Str("status", health.Status).Msg("backend reachable")
	}

	receiptData, err := readOptionalFile(*receipt)
	if err != nil {
		return fmt.Errorf("failed to read receipt: %w", err)
	}

	tracker := analytics.NewTracker()
	loader := media.NewLoader()
	publisher := ebay.NewPublisher(client, st, ebay.PublisherOpts{
		ClientID:    cfg.Ebay.ClientID,
		RedirectURI: cfg.Ebay.RedirectURI,
	})
	billingSvc := billing.NewService(
		billing.ReceiptProvider{Payload: receiptData, Signature: *signature},
		billing.StripeVerifier{WebhookSecret: cfg.Billing.WebhookSecret},
		st,
	)

	deps := listing.Deps{
		Store:     st,
		API:       client,
		Photos:    media.NewPipeline(nil),
		Quota:     billingSvc,
		Publisher: publisher,
		Exporter:  export.NewGenerator(st, loader),
		Tracker:   tracker,
		PhotoDir:  cfg.Store.PhotoDir,
	}
	if cfg.Gemini.APIKey != "" {
		gemini, err := media.NewGeminiRecognizer(ctx, cfg.Gemini.APIKey)
		if err != nil {
			return fmt.Errorf("failed to initialize label recognizer: %w", err)
		}
		deps.Recognizer = media.NewCachedRecognizer(gemini, backend)
	}

	switch {
	case *signIn:
		auth, err := publisher.SignIn(ctx, ebay.ConsoleBrowser{In: os.Stdin, Out: os.Stdout})
		if errors.Is(err, ebay.ErrCancelled) {
			fmt.Println("Sign in cancelled.")
			return nil
		}
		if err != nil {
			return fmt.Errorf("sign in failed: %w", err)
		}
		fmt.Printf("Linked eBay account on %s.\n", auth.SiteID)

	case *signOut:
		if err := publisher.SignOut(ctx); err != nil {
			return fmt.Errorf("sign out failed: %w", err)
		}
		fmt.Println("Unlinked eBay account.")

	case *policies != "":
		cache, err := readPolicies(*policies)
		if err != nil {
			return err
		}
		if err := publisher.RefreshPolicies(ctx, cache); err != nil {
			return fmt.Errorf("failed to cache policies: %w", err)
		}
		fmt.Printf("Cached %d shipping, %d payment and %d return policies.\n",
			len(cache.ShippingPolicies), len(cache.PaymentPolicies), len(cache.ReturnPolicies))

	case *syncPlan:
		account, err := billingSvc.SyncPlan(ctx, client)
		if err != nil {
			return fmt.Errorf("plan sync failed: %w", err)
		}
		fmt.Printf("On the %s plan.\n", account.Plan.DisplayName())

	case *upgrade != "":
		account, err := billingSvc.Purchase(ctx, model.Plan(*upgrade))
		if err != nil {
			return fmt.Errorf("upgrade failed: %w", err)
		}
		fmt.Printf("Now on the %s plan.\n", account.Plan.DisplayName())

	case *addPhoto != "":
		if err := runAddPhoto(ctx, deps, loader, *addPhoto, *label); err != nil {
			return err
		}

	case *publishID != "":
		if err := runPublish(ctx, deps, st, *publishID); err != nil {
			return err
		}

	case *exportID != "":
		kit, err := listing.Edit(deps, *exportID).Export(ctx, model.ExportMarketplace(*marketplace))
		if err != nil {
			return err
		}
		if err := kit.WriteDir(*outDir); err != nil {
			return fmt.Errorf("failed to write export kit: %w", err)
		}
		fmt.Printf("Wrote %s kit with %d photos to %s.\n", kit.Marketplace.DisplayName(), len(kit.Images), *outDir)
	}

	dashboard, err := listing.LoadDashboard(ctx, st)
	if err != nil {
		return err
	}
	fmt.Println(dashboard)

	if !*listen {
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Store.RedisAddress(),
		Password: cfg.Store.RedisPassword,
		DB:       cfg.Store.RedisDB,
	})
	defer rdb.Close()

	sales := notify.NewService(st, buildAlerter(cfg.Alerts), tracker)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sales.Run(ctx, notify.NewRedisSource(rdb, cfg.Alerts.SalesChannel))
	})
	g.Go(func() error {
		refreshTokens(ctx, publisher)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("shutdown with error: %w", err)
	}
	log.Info().Msg("shutdown complete")
	return nil
}

func runPublish(ctx context.Context, deps listing.Deps, st *store.Store, itemID string) error {
	ed := listing.Edit(deps, itemID)
	item, err := ed.Item(ctx)
	if err != nil {
		return err
	}
	account, err := st.Account(ctx)
	if err != nil {
		return err
	}

	offer, err := ebay.DefaultOffer(item, account.PoliciesCache)
	if err != nil {
		return fmt.Errorf("cannot build offer: %w", err)
	}
	result, err := ed.Publish(ctx, offer)
	if err != nil {
		return err
	}
	fmt.Printf("Published %s as %s\n", itemID, result.ListingURL)
	return nil
}

func runAddPhoto(ctx context.Context, deps listing.Deps, loader *media.Loader, photoPath, labelPath string) error {
	data, err := loader.Load(ctx, photoPath)
	if err != nil {
		return err
	}

	ed, err := listing.NewDraft(ctx, deps)
	if err != nil {
		return err
	}
	if _, err := ed.AddPhoto(ctx, data); err != nil {
		return err
	}

	if labelPath != "" {
		if deps.Recognizer == nil {
			return errors.New("GEMINI_API_KEY is required to read labels")
		}
		labelData, err := loader.Load(ctx, labelPath)
		if err != nil {
			return err
		}
		attrs, err := ed.RunOCR(ctx, labelData)
		if err != nil {
			return err
		}
		fmt.Printf("Label: brand=%q size=%q material=%q (confidence %.2f)\n", attrs.Brand, attrs.Size, attrs.Material, attrs.Confidence)
	}

	fmt.Printf("Created draft %s.\n", ed.ItemID())
	return nil
}

func buildAlerter(cfg config.AlertsConfig) notify.Alerter {
	var alerters notify.MultiAlerter
	if cfg.Desktop {
		alerters = append(alerters, notify.DesktopAlerter{})
	}
	if cfg.TelegramEnabled() {
		tg, err := notify.NewTelegramAlerterFromToken(cfg.TelegramToken, cfg.TelegramChat)
		if err != nil {
			log.Warn().Err(err).Msg("telegram alerts disabled")
		} else {
			alerters = append(alerters, tg)
		}
	}
	return alerters
}

func refreshTokens(ctx context.Context, publisher *ebay.Publisher) {
	ticker := time.NewTicker(tokenRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := publisher.RefreshIfNeeded(ctx); err != nil {
				log.Warn().Err(err).Msg("failed to refresh eBay credentials")
			}
		}
	}
}

func setupLogging(cfg config.LogConfig) (func(), error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zerolog.SetGlobalLevel(level)

	consoleWriter := zerolog.ConsoleWriter{Out: os.Stderr}
	if cfg.File == "" {
		log.Logger = log.Output(consoleWriter)
		return func() {}, nil
	}

	logFile, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	fileWriter := zerolog.ConsoleWriter{Out: logFile, NoColor: true}
	log.Logger = log.Output(io.MultiWriter(consoleWriter, fileWriter))
	log.Info().Str("logFile", cfg.File).Msg("logging to file")

	return func() { logFile.Close() }, nil
}

func readOptionalFile(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	return os.ReadFile(path)
}

func readPolicies(path string) (model.PoliciesCache, error) {
	var cache model.PoliciesCache
	data, err := os.ReadFile(path)
	if err != nil {
		return cache, fmt.Errorf("failed to read policies: %w", err)
	}
	if err := json.Unmarshal(data, &cache); err != nil {
		return cache, fmt.Errorf("failed to parse policies: %w", err)
	}
	return cache, nil
}
