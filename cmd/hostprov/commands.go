package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/artpar/hostprov/internal/core/domain"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// Root returns the root command for the hostprov CLI.
func Root() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "hostprov",
		Short:         "Provision hosting accounts after a purchase",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	cmd.AddCommand(Serve(&configPath))
	cmd.AddCommand(Provision(&configPath))
	cmd.AddCommand(Check(&configPath))
	cmd.AddCommand(Credentials(&configPath))
	cmd.AddCommand(VersionCmd())

	return cmd
}

// loadConfig loads configuration and the logger for a command.
func loadConfig(configPath string) (*Config, *slog.Logger, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, nil, &ServerError{Op: "LoadConfig", Err: err, ExitCode: ExitConfigError}
	}
	return cfg, SetupLogger(cfg), nil
}

// Serve returns the command that runs the HTTP API.
func Serve(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the SSL watcher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			logger.Info("starting hostprov",
				"version", Version,
				"config", *configPath,
			)

			server, err := NewServer(cfg, logger)
			if err != nil {
				return err
			}
			return server.Start(cmd.Context())
		},
	}
}

// Provision returns the command that provisions one order from a file.
func Provision(configPath *string) *cobra.Command {
	var orderPath, orderRef string

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Provision the hosting account of one order",
		Long: `Provision the hosting account described by a YAML order file.

The run is recorded like a checkout: an order reference that already
provisioned successfully is replayed instead of creating a second account.
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			of, err := LoadOrderFile(orderPath)
			if err != nil {
				return &ServerError{Op: "provision", Err: err, ExitCode: ExitConfigError}
			}
			if orderRef != "" {
				of.OrderRef = orderRef
			}
			if of.OrderRef == "" {
				of.OrderRef = "cli-" + uuid.New().String()[:8]
			}

			app, err := NewApp(cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			out, err := app.checkout.Complete(cmd.Context(), of.OrderRef, of.Order)
			if err != nil {
				return &ServerError{Op: "provision", Err: err, ExitCode: ExitDatabaseError}
			}

			report := provisionReport{
				OrderRef: of.OrderRef,
				Replayed: out.Replayed,
				Record:   out.Record,
				Result:   out.Result,
			}
			if out.Result != nil && out.Result.Credentials != nil {
				report.Password = out.Result.Credentials.Password
			}
			if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if !out.Record.Success {
				return &ServerError{
					Op:       "provision",
					Err:      fmt.Errorf("order %s failed: %v", of.OrderRef, out.Record.Errors),
					ExitCode: ExitProvisionFailed,
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&orderPath, "file", "f", "", "Path to the YAML order file")
	cmd.Flags().StringVar(&orderRef, "ref", "", "Order reference (overrides the file)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// provisionReport is printed by the provision command. It is the only
// place the generated password is shown.
type provisionReport struct {
	OrderRef string                     `json:"order_ref"`
	Replayed bool                       `json:"replayed"`
	Password string                     `json:"password,omitempty"`
	Record   *domain.ProvisionRecord    `json:"record"`
	Result   *domain.ProvisioningResult `json:"result,omitempty"`
}

// Check returns the command that tests control panel connectivity.
func Check(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Test control panel connectivity and plan packages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			orch, _, err := newOrchestrator(cfg, nil, logger)
			if err != nil {
				return err
			}

			c := orch.TestConnectivity(cmd.Context())
			if err := writeJSON(cmd.OutOrStdout(), c); err != nil {
				return err
			}
			if !c.Success {
				return &ServerError{Op: "check", Err: errors.New(c.Detail), ExitCode: ExitPanelError}
			}
			if len(c.Missing) > 0 {
				return &ServerError{
					Op:       "check",
					Err:      fmt.Errorf("plan packages missing on the panel: %v", c.Missing),
					ExitCode: ExitPanelError,
				}
			}
			return nil
		},
	}
}

// Credentials returns the command that decrypts an order's stored credentials.
func Credentials(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "credentials <order_ref>",
		Short: "Show the stored credentials of an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			app, err := NewApp(cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			creds, err := app.checkout.Credentials(cmd.Context(), args[0])
			if err != nil {
				return &ServerError{Op: "credentials", Err: err, ExitCode: ExitDatabaseError}
			}
			logger.Info("credentials disclosed", "order_ref", args[0], "account", creds)

			return writeJSON(cmd.OutOrStdout(), map[string]string{
				"username": creds.Username,
				"password": creds.Password,
				"domain":   creds.Domain,
			})
		},
	}
}

// VersionCmd returns the command that prints the version.
func VersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hostprov %s (built %s)\n", Version, BuildTime)
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
