package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/iho/stockledger/internal/adapter/http/dto"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type cliOptions struct {
	baseURL        string
	timeout        time.Duration
	idempotencyKey string
	asJSON         bool
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	rootCmd := &cobra.Command{
		Use:           "stockledger",
		Short:         "Stock ledger CLI tool",
		Long:          `A command line interface for recording equipment movements and reading balances through the stock ledger API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "url", envOr("STOCKLEDGER_URL", "http://localhost:8080"), "Base URL of the stock ledger API")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")
	rootCmd.PersistentFlags().BoolVar(&opts.asJSON, "json", false, "Print raw JSON responses")

	rootCmd.AddCommand(
		dashboardCmd(opts),
		balanceCmd(opts),
		historyCmd(opts),
		purchaseCmd(opts),
		transferCmd(opts),
		assignCmd(opts),
		expendCmd(opts),
		strikeCmd(opts),
		ledgerCmd(opts),
	)

	return rootCmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// apiError is a non-2xx response from the API.
type apiError struct {
	Status int
	Body   []byte
}

func (e *apiError) Error() string {
	var rej dto.RejectionResponse
	if err := json.Unmarshal(e.Body, &rej); err == nil && rej.Reason != "" {
		return fmt.Sprintf("rejected (%s): %s", rej.Reason, rej.Message)
	}

	var resp dto.ErrorResponse
	if err := json.Unmarshal(e.Body, &resp); err == nil && resp.Error != "" {
		if resp.Message != "" {
			return fmt.Sprintf("request failed (status %d): %s: %s", e.Status, resp.Error, resp.Message)
		}
		return fmt.Sprintf("request failed (status %d): %s", e.Status, resp.Error)
	}

	return fmt.Sprintf("request failed (status %d): %s", e.Status, truncate(strings.TrimSpace(string(e.Body)), 200))
}

// call sends body (if any) as JSON and decodes a 2xx response into out. The
// raw response body is returned for --json output.
func (o *cliOptions) call(method, path string, query url.Values, body, out any) ([]byte, error) {
	target := strings.TrimRight(o.baseURL, "/") + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, target, reader)
	if err != nil {
		return nil, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if o.idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", o.idempotencyKey)
	}

	client := &http.Client{Timeout: o.timeout}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return raw, &apiError{Status: resp.StatusCode, Body: raw}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return raw, fmt.Errorf("failed to parse response: %w", err)
		}
	}

	return raw, nil
}

func dashboardCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show balances of every base and equipment type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp dto.DashboardResponse
			raw, err := opts.call(http.MethodGet, "/api/v1/dashboard", nil, nil, &resp)
			if err != nil {
				return err
			}

			if opts.asJSON {
				return printRaw(cmd.OutOrStdout(), raw)
			}

			printSnapshots(cmd.OutOrStdout(), resp.Accounts)
			return nil
		},
	}
}

func balanceCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <base> <equipment-type>",
		Short: "Show the balance of one base and equipment type",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{"base": {args[0]}, "equipment_type": {args[1]}}

			var snap dto.SnapshotResponse
			raw, err := opts.call(http.MethodGet, "/api/v1/balance", query, nil, &snap)
			if err != nil {
				return err
			}

			if opts.asJSON {
				return printRaw(cmd.OutOrStdout(), raw)
			}

			printSnapshots(cmd.OutOrStdout(), []dto.SnapshotResponse{snap})
			return nil
		},
	}
}

func historyCmd(opts *cliOptions) *cobra.Command {
	var (
		base, equipmentType, kind string
		limit                     int
		before                    int64
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded movements, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			query := url.Values{}
			if base != "" {
				query.Set("base", base)
			}
			if equipmentType != "" {
				query.Set("equipment_type", equipmentType)
			}
			if kind != "" {
				query.Set("kind", kind)
			}
			if limit > 0 {
				query.Set("limit", strconv.Itoa(limit))
			}
			if before > 0 {
				query.Set("before", strconv.FormatInt(before, 10))
			}

			var page dto.HistoryResponse
			raw, err := opts.call(http.MethodGet, "/api/v1/history", query, nil, &page)
			if err != nil {
				return err
			}

			if opts.asJSON {
				return printRaw(cmd.OutOrStdout(), raw)
			}

			printRecords(cmd.OutOrStdout(), page.Records)
			if page.NextBefore > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "\nmore: --before %d\n", page.NextBefore)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&base, "base", "", "Filter by base (requires --equipment-type)")
	cmd.Flags().StringVar(&equipmentType, "equipment-type", "", "Filter by equipment type (requires --base)")
	cmd.Flags().StringVar(&kind, "kind", "", "Filter by kind: purchase, transfer, assignment, expenditure")
	cmd.Flags().IntVar(&limit, "limit", 0, "Page size")
	cmd.Flags().Int64Var(&before, "before", 0, "Continue from this sequence id")

	return cmd
}

// movementFlags registers flags shared by every movement command.
func movementFlags(cmd *cobra.Command, opts *cliOptions, date *string) {
	cmd.Flags().StringVar(date, "date", "", "Movement date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.idempotencyKey, "idempotency-key", "", "Key that makes retries of this command safe")
}

func submit(cmd *cobra.Command, opts *cliOptions, path string, body any) error {
	var resp dto.SubmitResponse
	raw, err := opts.call(http.MethodPost, path, nil, body, &resp)
	if err != nil {
		return err
	}

	if opts.asJSON {
		return printRaw(cmd.OutOrStdout(), raw)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "recorded as sequence %d\n", resp.SequenceID)
	if resp.TransferID != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "transfer %s\n", resp.TransferID)
	}
	return nil
}

func parseQuantity(s string) (int64, error) {
	q, err := strconv.ParseInt(s, 10, 64)
	if err != nil || q <= 0 {
		return 0, fmt.Errorf("quantity must be a positive integer, got %q", s)
	}
	return q, nil
}

func purchaseCmd(opts *cliOptions) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "purchase <base> <equipment-type> <quantity>",
		Short: "Record stock received at a base",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := parseQuantity(args[2])
			if err != nil {
				return err
			}

			return submit(cmd, opts, "/api/v1/purchases", dto.PurchaseRequest{
				Base: args[0], EquipmentType: args[1], Quantity: qty, Date: date,
			})
		},
	}
	movementFlags(cmd, opts, &date)

	return cmd
}

func transferCmd(opts *cliOptions) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "transfer <from-base> <to-base> <equipment-type> <quantity>",
		Short: "Move stock between bases",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := parseQuantity(args[3])
			if err != nil {
				return err
			}

			return submit(cmd, opts, "/api/v1/transfers", dto.TransferRequest{
				FromBase: args[0], ToBase: args[1], EquipmentType: args[2], Quantity: qty, Date: date,
			})
		},
	}
	movementFlags(cmd, opts, &date)

	return cmd
}

func assignCmd(opts *cliOptions) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "assign <base> <equipment-type> <quantity> <personnel>",
		Short: "Issue stock to personnel",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := parseQuantity(args[2])
			if err != nil {
				return err
			}

			return submit(cmd, opts, "/api/v1/assignments", dto.AssignmentRequest{
				Base: args[0], EquipmentType: args[1], Quantity: qty, Personnel: args[3], Date: date,
			})
		},
	}
	movementFlags(cmd, opts, &date)

	return cmd
}

func expendCmd(opts *cliOptions) *cobra.Command {
	var date, notes string

	cmd := &cobra.Command{
		Use:   "expend <base> <equipment-type> <quantity>",
		Short: "Record consumed stock",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := parseQuantity(args[2])
			if err != nil {
				return err
			}

			return submit(cmd, opts, "/api/v1/expenditures", dto.ExpenditureRequest{
				Base: args[0], EquipmentType: args[1], Quantity: qty, Notes: notes, Date: date,
			})
		},
	}
	movementFlags(cmd, opts, &date)
	cmd.Flags().StringVar(&notes, "notes", "", "Free-text notes")

	return cmd
}

func strikeCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "strike <base> <equipment-type> <opening-balance>",
		Short: "Close the current period and open the next one",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			opening, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil || opening < 0 {
				return fmt.Errorf("opening balance must be a non-negative integer, got %q", args[2])
			}

			var resp dto.PeriodResponse
			raw, err := opts.call(http.MethodPost, "/api/v1/periods", nil, dto.PeriodRequest{
				Base: args[0], EquipmentType: args[1], OpeningBalance: opening,
			}, &resp)
			if err != nil {
				return err
			}

			if opts.asJSON {
				return printRaw(cmd.OutOrStdout(), raw)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "period %d opened for %s/%s with %d\n",
				resp.Number, resp.Base, resp.EquipmentType, resp.OpeningBalance)
			return nil
		},
	}
}

func ledgerCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Ledger operations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "consistency",
		Short: "Check ledger consistency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var result dto.ConsistencyResponse
			raw, err := opts.call(http.MethodGet, "/api/v1/ledger/consistency", nil, nil, &result)

			var apiErr *apiError
			switch {
			case err == nil:
			case errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict:
				if jsonErr := json.Unmarshal(raw, &result); jsonErr != nil {
					return err
				}
			default:
				return err
			}

			out := cmd.OutOrStdout()

			switch {
			case opts.asJSON:
				if err := printRaw(out, raw); err != nil {
					return err
				}
			case result.Consistent:
				fmt.Fprintf(out, "Consistency check PASSED\n")
				fmt.Fprintf(out, "Accounts: %d\n", result.TotalAccounts)
			default:
				fmt.Fprintf(out, "Consistency check FAILED\n")
				for _, d := range result.Discrepancies {
					fmt.Fprintf(out, "  %s/%s: cached closing %d, replayed closing %d\n",
						d.Base, d.EquipmentType, d.Cached.ClosingBalance, d.Replayed.ClosingBalance)
				}
				for _, key := range result.Unbalanced {
					fmt.Fprintf(out, "  %s: balance identity broken\n", key)
				}
			}

			if !result.Consistent {
				return errors.New("ledger is inconsistent")
			}
			return nil
		},
	})

	return cmd
}

func printSnapshots(w io.Writer, snaps []dto.SnapshotResponse) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BASE\tEQUIPMENT\tPERIOD\tOPENING\tPURCHASED\tIN\tOUT\tASSIGNED\tEXPENDED\tCLOSING")
	for _, s := range snaps {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
			truncate(s.Base, 24), truncate(s.EquipmentType, 24), s.Period, s.OpeningBalance,
			s.Purchased, s.TransferredIn, s.TransferredOut, s.Assigned, s.Expended, s.ClosingBalance)
	}
	tw.Flush()
}

func printRecords(w io.Writer, recs []dto.RecordResponse) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tDATE\tKIND\tBASE\tEQUIPMENT\tQTY\tDETAIL")
	for _, r := range recs {
		detail := r.Personnel
		switch {
		case r.Leg == "out":
			detail = "to " + r.CounterpartyBase
		case r.Leg == "in":
			detail = "from " + r.CounterpartyBase
		case r.Notes != "":
			detail = r.Notes
		}

		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%s\n",
			r.SequenceID, r.Date, r.Kind, truncate(r.Base, 24), truncate(r.EquipmentType, 24), r.Quantity, truncate(detail, 40))
	}
	tw.Flush()
}

// printRaw pretty-prints a JSON response body.
func printRaw(w io.Writer, raw []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		_, err = w.Write(raw)
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
