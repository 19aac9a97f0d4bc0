// Command storectl drives a running smart store server from the shell:
//
//	storectl -user clerk -password clerk123 sell RICE-5KG:2 TEA-250G:1
//	storectl report -date 2024-03-15 -format pdf -out report.pdf
//	storectl inventory
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/yashhavalannache/smart-inventory-management/internal/client"
	"github.com/yashhavalannache/smart-inventory-management/internal/domain"
	"github.com/yashhavalannache/smart-inventory-management/internal/logger"
	"github.com/yashhavalannache/smart-inventory-management/internal/xid"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		logger.WithModule("storectl").WithError(err).Error("command failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	global := flag.NewFlagSet("storectl", flag.ContinueOnError)
	addr := global.String("addr", envOr("STORECTL_ADDR", "http://127.0.0.1:8080"), "server base URL")
	user := global.String("user", os.Getenv("STORECTL_USER"), "username")
	password := global.String("password", os.Getenv("STORECTL_PASSWORD"), "password")
	timeout := global.Duration("timeout", 15*time.Second, "request timeout")
	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		return errors.New("usage: storectl [flags] inventory|low-stock|sell|report")
	}

	c := client.New(*addr, *timeout)
	if _, err := c.Login(ctx, *user, *password); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	cmd, rest := global.Arg(0), global.Args()[1:]
	switch cmd {
	case "inventory":
		records, err := c.Inventory(ctx)
		if err != nil {
			return err
		}
		return printStock(out, records)
	case "low-stock":
		fs := flag.NewFlagSet("low-stock", flag.ContinueOnError)
		threshold := fs.Int("threshold", 0, "report products with fewer units than this")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		records, err := c.LowStock(ctx, *threshold)
		if err != nil {
			return err
		}
		return printStock(out, records)
	case "sell":
		return sell(ctx, c, rest, out)
	case "report":
		return dailyReport(ctx, c, rest, out)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func sell(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("sell", flag.ContinueOnError)
	date := fs.String("date", "", "sale date, YYYY-MM-DD (default today)")
	key := fs.String("key", "", "idempotency key (default generated)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	lines, err := parseLines(fs.Args())
	if err != nil {
		return err
	}
	if *key == "" {
		*key = xid.New("cli")
	}

	resp, err := c.Checkout(ctx, domain.CheckoutRequest{Items: lines, Date: *date, IdempotencyKey: *key})
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tNAME\tQTY\tTOTAL")
	for _, line := range resp.Lines {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", line.ProductID, line.ProductName, line.Quantity, line.TotalPrice.StringFixed(2))
	}
	fmt.Fprintf(tw, "\t\t\t%s\n", resp.TotalPrice.StringFixed(2))
	return tw.Flush()
}

// parseLines reads PRODUCT:QTY arguments.
func parseLines(args []string) ([]domain.SaleLine, error) {
	if len(args) == 0 {
		return nil, errors.New("sell needs at least one PRODUCT:QTY argument")
	}
	lines := make([]domain.SaleLine, 0, len(args))
	for _, arg := range args {
		id, qty, ok := strings.Cut(arg, ":")
		if !ok || strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("bad line %q, want PRODUCT:QTY", arg)
		}
		n, err := strconv.Atoi(qty)
		if err != nil {
			return nil, fmt.Errorf("bad quantity in %q: %w", arg, err)
		}
		lines = append(lines, domain.SaleLine{ProductID: strings.TrimSpace(id), Quantity: n})
	}
	return lines, nil
}

func dailyReport(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	date := fs.String("date", "", "report date, YYYY-MM-DD (default today)")
	format := fs.String("format", "json", "json, pdf or csv")
	dest := fs.String("out", "", "write the report to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var doc []byte
	switch *format {
	case "json":
		summary, err := c.DailyReport(ctx, *date)
		if err != nil {
			return err
		}
		doc, err = json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return err
		}
		doc = append(doc, '\n')
	case "pdf", "csv":
		var err error
		doc, err = c.DailyReportFile(ctx, *date, *format)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown format %q", *format)
	}

	if *dest == "" {
		_, err := out.Write(doc)
		return err
	}
	return os.WriteFile(*dest, doc, 0o644)
}

func printStock(out io.Writer, records []domain.StockRecord) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tNAME\tCOST\tPRICE\tQTY")
	for _, rec := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", rec.ProductID, rec.Name, rec.CostPrice.StringFixed(2), rec.SellingPrice.StringFixed(2), rec.Quantity)
	}
	return tw.Flush()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
