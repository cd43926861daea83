package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/corpbenefits/benefits-platform/internal/app"
	"github.com/corpbenefits/benefits-platform/internal/config"
	"github.com/corpbenefits/benefits-platform/internal/security"
	"github.com/spf13/cobra"

	log "github.com/sirupsen/logrus"
)

// main runs the CLI entrypoint and exits on unrecoverable command errors.
func main() {
	config.LoadDotEnv()
	if errRun := newRootCmd().Execute(); errRun != nil {
		log.WithError(errRun).Error("command failed")
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Running the root command serves HTTP.
func newRootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:           "benefits",
		Short:         "Corporate benefits plan configuration and enrollment service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (or env CONFIG_PATH)")

	serve := serveCmd(&cfgPath)
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	root.AddCommand(serve)
	root.AddCommand(migrateCmd(&cfgPath))
	root.AddCommand(initCmd(&cfgPath))
	root.AddCommand(tokenCmd(&cfgPath))
	return root
}

// resolveAppConfig applies the --config flag over CONFIG_PATH.
func resolveAppConfig(cfgPath string) (config.AppConfig, error) {
	appCfg, err := config.LoadFromEnv()
	if err != nil {
		return config.AppConfig{}, err
	}
	if strings.TrimSpace(cfgPath) != "" {
		appCfg.ConfigPath = config.ResolveConfigPath(cfgPath)
	}
	return appCfg, nil
}

func serveCmd(cfgPath *string) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			if errValidate := validatePort(port); errValidate != nil {
				return errValidate
			}
			appCfg, err := resolveAppConfig(*cfgPath)
			if err != nil {
				return err
			}
			override := 0
			if cmd.Flags().Changed("port") {
				override = port
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.RunServer(ctx, appCfg, override)
		},
	}
	cmd.Flags().IntVar(&port, "port", 8318, "server port (overrides the config default)")
	return cmd
}

func migrateCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and seed the default tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, err := resolveAppConfig(*cfgPath)
			if err != nil {
				return err
			}
			if errMigrate := app.Migrate(cmd.Context(), appCfg); errMigrate != nil {
				return errMigrate
			}
			log.Info("migrations applied")
			return nil
		},
	}
}

func initCmd(cfgPath *string) *cobra.Command {
	var req app.BootstrapRequest
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file and prepare the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, err := resolveAppConfig(*cfgPath)
			if err != nil {
				return err
			}
			return app.Bootstrap(cmd.Context(), config.ResolveConfigPath(appCfg.ConfigPath), req)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&req.DatabaseType, "db-type", "sqlite", "database type (postgres or sqlite)")
	flags.StringVar(&req.DatabaseHost, "db-host", "localhost", "postgres host")
	flags.IntVar(&req.DatabasePort, "db-port", 5432, "postgres port")
	flags.StringVar(&req.DatabaseUser, "db-user", "", "postgres user")
	flags.StringVar(&req.DatabasePassword, "db-password", "", "postgres password")
	flags.StringVar(&req.DatabaseName, "db-name", "benefits", "postgres database name")
	flags.StringVar(&req.DatabaseSSLMode, "db-sslmode", "disable", "postgres sslmode")
	flags.StringVar(&req.DatabasePath, "db-path", "benefits.db", "sqlite database file")
	flags.IntVar(&req.Port, "port", 8318, "server port written to the config")
	flags.StringVar(&req.RootDomain, "root-domain", "", "root domain tenant subdomains hang off")
	flags.StringVar(&req.DefaultTenant, "tenant", "", "default tenant slug to create")
	flags.StringVar(&req.TenantName, "tenant-name", "", "default tenant display name")
	flags.StringVar(&req.CountryCode, "country", "", "default tenant country code")
	return cmd
}

func tokenCmd(cfgPath *string) *cobra.Command {
	var (
		subject string
		role    string
		tenant  string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a signed bearer token for local use",
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, err := resolveAppConfig(*cfgPath)
			if err != nil {
				return err
			}
			jwtCfg, err := config.LoadJWTConfig(config.ResolveConfigPath(appCfg.ConfigPath))
			if err != nil {
				return err
			}
			if strings.TrimSpace(jwtCfg.Secret) == "" {
				return fmt.Errorf("jwt secret is not configured")
			}
			switch role {
			case security.RoleAdmin, security.RoleEmployee:
			default:
				return fmt.Errorf("invalid role %q", role)
			}
			if role == security.RoleEmployee && strings.TrimSpace(tenant) == "" {
				return fmt.Errorf("employee tokens need --tenant")
			}
			if ttl <= 0 {
				ttl = jwtCfg.Expiry
			}
			token, err := security.IssueToken(jwtCfg.Secret, subject, role, tenant, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "token subject (employee id or admin name)")
	cmd.Flags().StringVar(&role, "role", security.RoleEmployee, "admin or employee")
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant slug the token is bound to")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to jwt.expiry)")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func validatePort(port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port: %d", port)
	}
	return nil
}
