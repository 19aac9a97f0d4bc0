package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yashhavalannache/smart-inventory-management/internal/cache"
	"github.com/yashhavalannache/smart-inventory-management/internal/httpapi"
	"github.com/yashhavalannache/smart-inventory-management/internal/service"
	"github.com/yashhavalannache/smart-inventory-management/internal/store/memory"
)

func startServer(t *testing.T) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	repo := memory.NewSeeded()
	svc := service.New(repo, cache.NewLocalCheckoutReplayCache(), service.Options{})
	auth := httpapi.NewAuthManager(context.Background(), "storectl-test-secret", time.Hour, repo)
	srv := httptest.NewServer(httpapi.New(svc, auth, "*", "storectl-test").Handler())
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestParseLines(t *testing.T) {
	lines, err := parseLines([]string{"RICE-5KG:2", " TEA-250G :1"})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(lines) != 2 || lines[1].ProductID != "TEA-250G" || lines[0].Quantity != 2 {
		t.Fatalf("unexpected lines %+v", lines)
	}

	for _, bad := range [][]string{nil, {"RICE-5KG"}, {":2"}, {"RICE-5KG:two"}} {
		if _, err := parseLines(bad); err == nil {
			t.Fatalf("expected %v to be rejected", bad)
		}
	}
}

func TestSellAndReport(t *testing.T) {
	addr := startServer(t)
	auth := []string{"-addr", addr, "-user", "clerk", "-password", "clerk123"}

	var out bytes.Buffer
	args := append(append([]string{}, auth...), "sell", "-date", "2024-03-15", "RICE-5KG:2")
	if err := run(context.Background(), args, &out); err != nil {
		t.Fatalf("sell failed: %v", err)
	}
	if !strings.Contains(out.String(), "998.00") {
		t.Fatalf("expected sale total in output, got %s", out.String())
	}

	dest := filepath.Join(t.TempDir(), "report.pdf")
	args = append(append([]string{}, auth...), "report", "-date", "2024-03-15", "-format", "pdf", "-out", dest)
	if err := run(context.Background(), args, &out); err != nil {
		t.Fatalf("report failed: %v", err)
	}
	doc, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !bytes.HasPrefix(doc, []byte("%PDF")) {
		t.Fatalf("expected a pdf file")
	}

	out.Reset()
	args = append(append([]string{}, auth...), "report", "-date", "2024-03-15")
	if err := run(context.Background(), args, &out); err != nil {
		t.Fatalf("json report failed: %v", err)
	}
	if !strings.Contains(out.String(), `"total_items_sold": 2`) {
		t.Fatalf("expected json summary, got %s", out.String())
	}
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	addr := startServer(t)
	err := run(context.Background(), []string{"-addr", addr, "-user", "clerk", "-password", "clerk123", "refund"}, &bytes.Buffer{})
	if err == nil {
		t.Fatalf("expected unknown command to fail")
	}
}
