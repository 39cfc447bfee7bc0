package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/veriledger/veriledger/pkg/client"
)

// version is overridden by goreleaser via -ldflags "-X main.version=...".
var version = "dev"

var (
	serverURL string
	authToken string
	cfgFile   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vlctl",
	Short: "VeriLedger CLI",
	Long: `vlctl is the command-line interface for a VeriLedger service.

It appends compliance events, verifies tenant chains, and exports
event history for audits.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.vlctl")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if serverURL == "" {
			serverURL = viper.GetString("server_url")
		}
		if serverURL == "" {
			serverURL = "http://localhost:8080"
		}
		if authToken == "" {
			authToken = viper.GetString("auth_token")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.vlctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "VeriLedger service URL (default http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", "", "JWT Bearer token for appends")

	rootCmd.AddCommand(appendCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(versionCmd)
}

func newClient() (*client.Client, error) {
	opts := []client.Option{}
	if authToken != "" {
		opts = append(opts, client.WithBearerToken(authToken))
	}
	return client.New(serverURL, opts...)
}

// ── append ───────────────────────────────────────────────────────────────────

var (
	appendType          string
	appendData          string
	appendUserID        string
	appendCorrelationID string
	appendDescription   string
)

var appendCmd = &cobra.Command{
	Use:   "append <tenant-id>",
	Short: "Append an event to a tenant's chain",
	Long: `Append commits one event to the tenant's hash chain and prints the
committed hashes.

The payload is read from --data, or from stdin when --data is "-":

  vlctl append acme-corp --type document.signed --data '{"doc": "d-42"}'
  cat payload.json | vlctl append acme-corp --type document.signed --data -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tenantID := args[0]

		data := appendData
		if data == "-" {
			raw, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("read payload from stdin: %w", err)
			}
			data = string(raw)
		}
		if !json.Valid([]byte(data)) {
			return fmt.Errorf("--data is not valid JSON")
		}

		c, err := newClient()
		if err != nil {
			return err
		}

		e, err := c.AppendEvent(context.Background(), tenantID, client.AppendEventRequest{
			EventType:     appendType,
			EventData:     json.RawMessage(data),
			UserID:        appendUserID,
			CorrelationID: appendCorrelationID,
			Description:   appendDescription,
		})
		if err != nil {
			return fmt.Errorf("append event: %w", err)
		}

		fmt.Printf("✓ Event appended\n\n")
		fmt.Printf("  ID:            %s\n", e.ID)
		fmt.Printf("  Tenant:        %s\n", e.TenantID)
		fmt.Printf("  Type:          %s\n", e.EventType)
		fmt.Printf("  Content hash:  %s\n", e.ContentHash)
		fmt.Printf("  Previous hash: %s\n", e.PreviousHash)
		fmt.Printf("  Chain hash:    %s\n", e.ChainHash)
		return nil
	},
}

func init() {
	appendCmd.Flags().StringVar(&appendType, "type", "", "Event type (e.g. document.signed)")
	appendCmd.Flags().StringVar(&appendData, "data", "", `Event payload as JSON, or "-" for stdin`)
	appendCmd.Flags().StringVar(&appendUserID, "user", "", "Acting user ID")
	appendCmd.Flags().StringVar(&appendCorrelationID, "correlation", "", "Correlation ID linking related events")
	appendCmd.Flags().StringVar(&appendDescription, "description", "", "Human-readable event description")

	_ = appendCmd.MarkFlagRequired("type")
	_ = appendCmd.MarkFlagRequired("data")
}

// ── verify ───────────────────────────────────────────────────────────────────

var verifyCmd = &cobra.Command{
	Use:   "verify <tenant-id> [tenant-id] ...",
	Short: "Verify the integrity of one or more tenant chains",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx := context.Background()

		failed := 0
		for _, tenantID := range args {
			res, err := c.Verify(ctx, tenantID)
			if err != nil {
				return fmt.Errorf("verify %s: %w", tenantID, err)
			}
			if res.Valid {
				fmt.Printf("✓ %-24s %d event(s), chain intact\n", tenantID, res.TotalEvents)
			} else {
				failed++
				fmt.Printf("✗ %-24s %d event(s), INVALID: %s\n", tenantID, res.TotalEvents, res.Error)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d chain(s) failed verification", failed, len(args))
		}
		return nil
	},
}

// ── list ─────────────────────────────────────────────────────────────────────

var (
	listType   string
	listSince  string
	listLimit  int
	listFormat string
)

var listCmd = &cobra.Command{
	Use:   "list <tenant-id>",
	Short: "List a tenant's events in chain order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tenantID := args[0]

		opts := client.ListOptions{EventType: listType, Limit: listLimit}
		if listSince != "" {
			since, err := time.Parse(time.RFC3339, listSince)
			if err != nil {
				return fmt.Errorf("invalid --since (want RFC3339, e.g. 2026-01-02T15:04:05Z): %w", err)
			}
			opts.Since = since
		}

		c, err := newClient()
		if err != nil {
			return err
		}
		events, err := c.ListEvents(context.Background(), tenantID, opts)
		if err != nil {
			return fmt.Errorf("list events: %w", err)
		}

		if listFormat == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(events)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CREATED\tTYPE\tUSER\tCHAIN HASH\tID")
		for _, e := range events {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s…\t%s\n",
				e.CreatedAt.Format(time.RFC3339), e.EventType, e.UserID,
				shortHash(e.ChainHash), e.ID)
		}
		return w.Flush()
	},
}

func init() {
	listCmd.Flags().StringVar(&listType, "type", "", "Filter by event type")
	listCmd.Flags().StringVar(&listSince, "since", "", "Only events at or after this RFC3339 timestamp")
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "Maximum number of events (0 = all)")
	listCmd.Flags().StringVar(&listFormat, "format", "text", "Output format: text or json")
}

func shortHash(h string) string {
	if len(h) > 16 {
		return h[:16]
	}
	return h
}

// ── export ───────────────────────────────────────────────────────────────────

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export <tenant-id>",
	Short: "Export a tenant's full chain as NDJSON",
	Long: `Export streams the tenant's complete event history, one JSON object
per line, suitable for archival or offline re-verification:

  vlctl export acme-corp -o acme-corp.ndjson
  vlctl export acme-corp | jq .chain_hash`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tenantID := args[0]

		c, err := newClient()
		if err != nil {
			return err
		}

		out := os.Stdout
		if exportOut != "" {
			f, err := os.Create(exportOut)
			if err != nil {
				return fmt.Errorf("create %s: %w", exportOut, err)
			}
			defer f.Close()
			out = f
		}

		if err := c.Export(context.Background(), tenantID, out); err != nil {
			return fmt.Errorf("export: %w", err)
		}
		if exportOut != "" {
			fmt.Fprintf(os.Stderr, "✓ Exported %s to %s\n", tenantID, exportOut)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "Write to file instead of stdout")
}

// ── summary ──────────────────────────────────────────────────────────────────

var summaryCmd = &cobra.Command{
	Use:   "summary <tenant-id>",
	Short: "Show a tenant's event count and current chain tip",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		sum, err := c.Summary(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("summary: %w", err)
		}

		fmt.Printf("Tenant:       %s\n", sum.TenantID)
		fmt.Printf("Total events: %d\n", sum.TotalEvents)
		if sum.Tip != "" {
			fmt.Printf("Chain tip:    %s\n", sum.Tip)
		} else {
			fmt.Println("Chain tip:    (empty chain)")
		}
		return nil
	},
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the vlctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("vlctl %s (VeriLedger)\n", version)
	},
}
