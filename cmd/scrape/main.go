package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maltedev/price-tracker/internal/app"
	"github.com/maltedev/price-tracker/internal/config"
	"github.com/maltedev/price-tracker/internal/events"
	"github.com/maltedev/price-tracker/internal/fetch"
	"github.com/maltedev/price-tracker/internal/models"
	"github.com/maltedev/price-tracker/internal/queue"
	"github.com/maltedev/price-tracker/internal/ratelimit"
	"github.com/maltedev/price-tracker/internal/store"
	"github.com/maltedev/price-tracker/internal/store/mongostore"
	"github.com/maltedev/price-tracker/pkg/logger"
)

type result struct {
	URL     string `json:"url"`
	ID      string `json:"id,omitempty"`
	Product any    `json:"product,omitempty"`
	Error   string `json:"error,omitempty"`
}

func main() {
	var (
		urls       = flag.String("url", "", "Comma-separated list of product URLs to scrape")
		inputFile  = flag.String("file", "", "File containing product URLs (one per line)")
		save       = flag.Bool("save", false, "Save scraped products to MongoDB")
		maxRetries = flag.Int("retries", 2, "Retries for network and upstream-unavailable failures")
	)
	flag.Parse()

	cfg, err := config.LoadCLI(*save)
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		os.Exit(2)
	}
	// stdout carries the JSON results only.
	log := logger.NewWithWriter(os.Stderr, cfg.Logging.Level, "text")

	var fileData []byte
	if *inputFile != "" {
		data, err := os.ReadFile(*inputFile)
		if err != nil {
			log.Error("failed to read input file", "error", err)
			os.Exit(1)
		}
		fileData = data
	}

	tasks := queue.NewInMemoryQueue()
	if n, err := queue.Load(tasks, *urls, fileData); err != nil || n == 0 {
		fmt.Fprintln(os.Stderr, "No URLs to process. Use -url or -file.")
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	products, closeStore, err := openStore(ctx, cfg, *save, log)
	if err != nil {
		log.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	svc, closeTracker, err := app.NewTracker(cfg, app.Infra{
		Store:     products,
		Counter:   ratelimit.NewMemoryCounter(),
		Publisher: events.Discard{},
	}, log)
	if err != nil {
		log.Error("failed to build tracker", "error", err)
		os.Exit(1)
	}
	defer closeTracker()

	if failed := runTasks(ctx, svc, tasks, *save, *maxRetries, os.Stdout, log); failed > 0 {
		os.Exit(1)
	}
}

type productService interface {
	TrackURL(ctx context.Context, url string) (string, error)
	ScrapeAmazonProduct(ctx context.Context, url string) (*models.Product, error)
}

// runTasks drains tasks, writing one JSON result per finished task to out,
// and returns the number of failures.
func runTasks(ctx context.Context, svc productService, tasks queue.Queue, save bool, maxRetries int, out io.Writer, log *slog.Logger) int {
	defer tasks.Close()

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	failed := 0
	for ctx.Err() == nil && tasks.Size() > 0 {
		task, err := tasks.Pop()
		if err != nil {
			break
		}

		res, err := process(ctx, svc, task.URL, save)
		if err != nil && task.Retries < maxRetries && retryable(err) {
			task.Retries++
			log.Info("retrying", "url", task.URL, "retry", task.Retries)
			if err := tasks.Push(task); err != nil {
				log.Error("failed to requeue task", "url", task.URL, "error", err)
			} else {
				continue
			}
		}
		if err != nil {
			failed++
		}
		if err := enc.Encode(res); err != nil {
			log.Error("failed to write result", "url", task.URL, "error", err)
		}
	}
	return failed
}

func process(ctx context.Context, svc productService, url string, save bool) (result, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	if save {
		id, err := svc.TrackURL(ctx, url)
		if err != nil {
			return result{URL: url, Error: err.Error()}, err
		}
		return result{URL: url, ID: id}, nil
	}

	product, err := svc.ScrapeAmazonProduct(ctx, url)
	if err != nil {
		return result{URL: url, Error: err.Error()}, err
	}
	return result{URL: url, Product: product}, nil
}

func retryable(err error) bool {
	return errors.Is(err, fetch.ErrNetwork) || errors.Is(err, fetch.ErrUpstreamUnavailable)
}

func openStore(ctx context.Context, cfg *config.Config, save bool, log *slog.Logger) (store.ProductStore, func(), error) {
	if !save {
		return store.NewMemory(), func() {}, nil
	}
	mongoCfg := mongostore.DefaultConfig(cfg.Mongo.URI)
	mongoCfg.Database = cfg.Mongo.Database
	s, err := mongostore.Connect(ctx, mongoCfg, log)
	if err != nil {
		return nil, nil, err
	}
	return s, func() { s.Close(context.Background()) }, nil
}
