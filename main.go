package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campus-cafe/bot"
	"campus-cafe/config"
	"campus-cafe/httpapi"
	"campus-cafe/services"
	"campus-cafe/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var (
	verbose bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:          "cafe",
	Short:        "Campus café ordering: HTTP API, customer bot and staff bot",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
		logger, err = newLogger(cfg.LogLevel, verbose)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the Telegram bots (default)",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply SQL migrations (postgres backend)",
	RunE:  runMigrate,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Write the default menu",
	RunE:  runSeed,
}

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage back-office accounts",
}

var adminAddCmd = &cobra.Command{
	Use:   "add <email>",
	Short: "Create an admin or reset its password",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdminAdd,
}

var adminRemoveCmd = &cobra.Command{
	Use:   "remove <email>",
	Short: "Remove an admin",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdminRemove,
}

var adminListCmd = &cobra.Command{
	Use:   "list",
	Short: "List admin emails",
	RunE:  runAdminList,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	seedCmd.Flags().Bool("force", false, "Overwrite an existing menu")
	adminAddCmd.Flags().String("password", "", "Password (generated when empty)")

	adminCmd.AddCommand(adminAddCmd, adminRemoveCmd, adminListCmd)
	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd, adminCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openShop opens the configured store and wires the services over it.
// With AUTO_MIGRATE on a postgres backend, migrations run first.
func openShop(ctx context.Context) (*services.Shop, *store.Backend, error) {
	backend, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if backend.Pool != nil && cfg.Store.AutoMigrate {
		if err := applyMigrations(ctx, backend.Pool, logger.Named("migrate")); err != nil {
			backend.Close()
			return nil, nil, err
		}
	}
	shop := services.NewShop(backend.Store, services.Options{
		Logger:       logger,
		PickupWindow: cfg.Orders.PickupWindow,
	})
	logger.Info("store opened", zap.String("backend", cfg.Store.Backend))
	return shop, backend, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shop, backend, err := openShop(ctx)
	if err != nil {
		return err
	}
	defer backend.Close()
	if err := shop.Init(ctx, cfg.Admin.Email, cfg.Admin.Password); err != nil {
		return fmt.Errorf("init: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	var notifiers []httpapi.OrderNotifier

	var customerBot *bot.Bot
	if cfg.Telegram.Token != "" {
		customerBot, err = bot.New(cfg.Telegram.Token, shop, logger.Named("bot"), cfg.Orders.RefreshInterval)
		if err != nil {
			return err
		}
		notifiers = append(notifiers, customerBot)
		g.Go(func() error { return customerBot.Run(ctx) })
	} else {
		logger.Warn("TOKEN not set, customer bot disabled")
	}

	if cfg.Telegram.StaffToken != "" {
		staffBot, err := bot.NewStaffBot(cfg.Telegram.StaffToken, shop, logger.Named("staff"))
		if err != nil {
			return err
		}
		if customerBot != nil {
			customerBot.SetStaffNotifier(staffBot)
			staffBot.SetCustomerNotifier(customerBot)
		}
		notifiers = append(notifiers, staffBot)
		g.Go(func() error { return staffBot.Run(ctx) })
	} else {
		logger.Warn("STAFF_TOKEN not set, staff bot disabled")
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpapi.NewRouter(httpapi.NewHandler(shop, logger.Named("http"), notifiers...)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		logger.Info("http listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info("shut down")
	return err
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	backend, err := store.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()
	if backend.Pool == nil {
		logger.Info("nothing to migrate", zap.String("backend", cfg.Store.Backend))
		return nil
	}
	return applyMigrations(ctx, backend.Pool, logger.Named("migrate"))
}

func runSeed(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")
	shop, backend, err := openShop(cmd.Context())
	if err != nil {
		return err
	}
	defer backend.Close()
	n, err := shop.Menu.Seed(cmd.Context(), force)
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Println("Menu already present; use --force to overwrite.")
		return nil
	}
	fmt.Printf("Seeded %d menu items.\n", n)
	return nil
}

func runAdminAdd(cmd *cobra.Command, args []string) error {
	password, _ := cmd.Flags().GetString("password")
	generated := password == ""
	if generated {
		var err error
		if password, err = services.GenerateSecurePassword(); err != nil {
			return err
		}
	}
	shop, backend, err := openShop(cmd.Context())
	if err != nil {
		return err
	}
	defer backend.Close()
	created, err := shop.Credentials.AddAdmin(cmd.Context(), args[0], password)
	if err != nil {
		return err
	}
	verb := "Updated"
	if created {
		verb = "Created"
	}
	fmt.Printf("%s admin %s.\n", verb, args[0])
	if generated {
		fmt.Printf("Password: %s\n", password)
	}
	return nil
}

func runAdminRemove(cmd *cobra.Command, args []string) error {
	shop, backend, err := openShop(cmd.Context())
	if err != nil {
		return err
	}
	defer backend.Close()
	ok, err := shop.Credentials.RemoveAdmin(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no admin %s", args[0])
	}
	fmt.Printf("Removed admin %s.\n", args[0])
	return nil
}

func runAdminList(cmd *cobra.Command, args []string) error {
	shop, backend, err := openShop(cmd.Context())
	if err != nil {
		return err
	}
	defer backend.Close()
	emails, err := shop.Credentials.ListAdmins(cmd.Context())
	if err != nil {
		return err
	}
	for _, e := range emails {
		fmt.Println(e)
	}
	return nil
}
