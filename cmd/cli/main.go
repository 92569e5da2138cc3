package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/BCJdevelopment/balance-shares-protocol/internal/domain"
)

var (
	baseURL  string
	timeout  time.Duration
	clientID string
	shareID  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "bsp-cli",
		Short: "Balance shares CLI tool",
		Long:  `A command line interface for interacting with the balance shares API.`,
	}

	rootCmd.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:8080", "Base URL of the balance shares API")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")
	rootCmd.PersistentFlags().StringVar(&clientID, "client", "", "Client ID owning the share")
	rootCmd.PersistentFlags().StringVar(&shareID, "share", "", "Share ID within the client")

	rootCmd.AddCommand(
		statusCmd(),
		setAccountCmd(),
		removeAccountCmd(),
		periodCmd(),
		depositCmd(),
		withdrawCmd(),
		withdrawableCmd(),
		eventsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the share root: checkpoint index and allocated percent",
		Run: func(cmd *cobra.Command, args []string) {
			result := request(http.MethodGet, sharePath(), nil, http.StatusOK)
			printJSON(result)
		},
	}
}

func setAccountCmd() *cobra.Command {
	var removableAt string

	cmd := &cobra.Command{
		Use:   "set-account <account-id> <bps>",
		Short: "Set an account's allocation in basis points",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			bps, err := parseBps(args[1])
			if err != nil {
				fatal("invalid bps: %v", err)
			}

			body := map[string]any{"bps": bps}
			if removableAt != "" {
				ts, err := time.Parse(time.RFC3339, removableAt)
				if err != nil {
					fatal("invalid removable-at: %v", err)
				}
				body["removable_at"] = ts
			}

			result := request(http.MethodPut, sharePath()+"/accounts/"+args[0], body, http.StatusOK)
			fmt.Printf("Account %s set to %s%%\n", args[0], formatPercent(bps))
			printJSON(result)
		},
	}

	cmd.Flags().StringVar(&removableAt, "removable-at", "", "Earliest removal time (RFC3339), locks reductions until then")
	return cmd
}

func removeAccountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-account <account-id>",
		Short: "Remove an account's allocation (close its open period at bps 0)",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			result := request(http.MethodDelete, sharePath()+"/accounts/"+args[0], nil, http.StatusOK)
			printJSON(result)
		},
	}
}

func periodCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "period <account-id> <index>",
		Short: "Show one period of an account's timeline",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			result := request(http.MethodGet, sharePath()+"/accounts/"+args[0]+"/periods/"+args[1], nil, http.StatusOK)
			printJSON(result)
		},
	}
}

func depositCmd() *cobra.Command {
	var idempotencyKey string

	cmd := &cobra.Command{
		Use:   "deposit <asset-id> <amount>",
		Short: "Record a deposit into the current checkpoint",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			if _, err := strconv.ParseUint(args[1], 10, 64); err != nil {
				fatal("invalid amount: %v", err)
			}

			body := map[string]any{"asset_id": args[0], "amount": args[1]}
			result := requestWithKey(http.MethodPost, sharePath()+"/deposits", body, idempotencyKey, http.StatusCreated)
			printJSON(result)
		},
	}

	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "Idempotency key for safe retries")
	return cmd
}

func withdrawCmd() *cobra.Command {
	var idempotencyKey string

	cmd := &cobra.Command{
		Use:   "withdraw <account-id> <period-index> <asset-id>",
		Short: "Settle and withdraw one asset of one period",
		Args:  cobra.ExactArgs(3),
		Run: func(cmd *cobra.Command, args []string) {
			periodIndex, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				fatal("invalid period index: %v", err)
			}

			body := map[string]any{"period_index": periodIndex, "asset_id": args[2]}
			result := requestWithKey(http.MethodPost, sharePath()+"/accounts/"+args[0]+"/withdrawals", body, idempotencyKey, http.StatusCreated)
			printJSON(result)
		},
	}

	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "Idempotency key for safe retries")
	return cmd
}

func withdrawableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "withdrawable <account-id> <period-index> <asset-id>",
		Short: "Preview the amount a withdrawal would settle, without settling",
		Args:  cobra.ExactArgs(3),
		Run: func(cmd *cobra.Command, args []string) {
			path := fmt.Sprintf("%s/accounts/%s/withdrawable?period=%s&asset=%s", sharePath(), args[0], args[1], args[2])
			result := request(http.MethodGet, path, nil, http.StatusOK)
			printJSON(result)
		},
	}
}

func eventsCmd() *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List recent ledger events",
		Run: func(cmd *cobra.Command, args []string) {
			path := fmt.Sprintf("/api/v1/events?limit=%d&offset=%d", limit, offset)
			result := request(http.MethodGet, path, nil, http.StatusOK)
			printJSON(result)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of events")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of events to skip")
	return cmd
}

func sharePath() string {
	if clientID == "" || shareID == "" {
		fatal("--client and --share are required")
	}
	return "/api/v1/clients/" + clientID + "/shares/" + shareID
}

func request(method, path string, body any, wantStatus int) map[string]any {
	return requestWithKey(method, path, body, "", wantStatus)
}

func requestWithKey(method, path string, body any, idempotencyKey string, wantStatus int) map[string]any {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			fatal("failed to encode request: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, baseURL+path, reader)
	if err != nil {
		fatal("failed to build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		fatal("request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != wantStatus {
		fatal("unexpected status %d: %s", resp.StatusCode, string(raw))
	}

	var result map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &result); err != nil {
			fatal("failed to parse response: %v", err)
		}
	}
	return result
}

// parseBps parses a basis-point argument. A trailing "%" parses as percent,
// so "25%" and "2500" mean the same allocation.
func parseBps(s string) (uint16, error) {
	if len(s) > 1 && s[len(s)-1] == '%' {
		pct, err := decimal.NewFromString(s[:len(s)-1])
		if err != nil {
			return 0, err
		}
		s = pct.Shift(2).String()
	}

	bps, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, err
	}
	if bps > uint64(domain.MaxBps) {
		return 0, fmt.Errorf("bps %d exceeds %d", bps, domain.MaxBps)
	}
	return uint16(bps), nil
}

func formatPercent(bps uint16) string {
	return decimal.New(int64(bps), -2).String()
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("failed to render response: %v\n", err)
		return
	}
	fmt.Println(string(out))
}

func fatal(format string, args ...any) {
	fmt.Printf(format+"\n", args...)
	os.Exit(1)
}
