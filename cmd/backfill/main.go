// Command backfill collects a keyword's historical posts by walking
// date-bounded search windows, oldest first. Collected posts go to the
// ingest subject when a NATS URL is given, or to stdout as JSON for
// inspection.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/VoxPulseAI/voxpulse/engine/collector"
	"github.com/VoxPulseAI/voxpulse/engine/domain"
	"github.com/VoxPulseAI/voxpulse/engine/ingest"
	"github.com/VoxPulseAI/voxpulse/pkg/natsutil"
)

const dateLayout = "2006-01-02"

func main() {
	var (
		keyword  = flag.String("keyword", "", "keyword to backfill (required)")
		platform = flag.String("platform", "x", "platform to scrape")
		since    = flag.String("since", "", "oldest date to cover, YYYY-MM-DD (required)")
		until    = flag.String("until", "", "newest date to cover, YYYY-MM-DD (default today)")
		window   = flag.Duration("window", 168*time.Hour, "size of each search window")
		cookies  = flag.String("cookies", envOr("X_COOKIES_PATH", ""), "credential bundle path")
		headless = flag.Bool("headless", true, "run the browser headless")
		natsURL  = flag.String("nats", "", "NATS URL (if empty, output JSON to stdout)")
	)
	flag.Parse()

	if *keyword == "" || *since == "" {
		flag.Usage()
		os.Exit(2)
	}
	if err := domain.ValidateKeyword(*keyword); err != nil {
		log.Fatalf("keyword: %v", err)
	}

	plat, err := collector.ByName(*platform)
	if err != nil {
		log.Fatal(err)
	}
	if plat.Name() != "x" {
		log.Fatalf("platform %q has no date-bounded search; backfill supports x only", plat.Name())
	}

	start, end, err := parseRange(*since, *until, time.Now().UTC())
	if err != nil {
		log.Fatal(err)
	}
	if *window <= 0 {
		log.Fatalf("window must be positive, got %s", *window)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var nc *nats.Conn
	if *natsURL != "" {
		nc, err = nats.Connect(*natsURL, nats.Name("voxpulse-backfill"))
		if err != nil {
			log.Fatalf("nats connect: %v", err)
		}
		defer nc.Close()
	}

	c := collector.New(plat, collector.Options{
		Headless:   *headless,
		CookiePath: *cookies,
	}, nil)

	log.Printf("backfilling %q on %s: %s .. %s in %s windows",
		*keyword, plat.Name(), start.Format(dateLayout), end.Format(dateLayout), *window)

	records, term := c.ScrapeWindows(ctx, *keyword, start, end, *window)
	log.Printf("collected %d records (termination: %s)", len(records), term)

	scrapedAt := time.Now().UTC()
	if nc != nil {
		published := 0
		for _, r := range records {
			if err := natsutil.Publish(ctx, nc, ingest.Subject, r.Post(plat.Name(), *keyword, scrapedAt)); err != nil {
				log.Printf("publish: %v", err)
				continue
			}
			published++
		}
		if err := nc.Flush(); err != nil {
			log.Printf("flush: %v", err)
		}
		log.Printf("published %d of %d posts to %s", published, len(records), ingest.Subject)
	} else {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		for _, r := range records {
			if err := enc.Encode(r.Post(plat.Name(), *keyword, scrapedAt)); err != nil {
				log.Fatalf("encode: %v", err)
			}
		}
	}

	if term.Aborted() && len(records) == 0 {
		os.Exit(1)
	}
}

// parseRange resolves the since/until flags. An empty until means the
// start of today so a rerun with the same flags stays idempotent.
func parseRange(since, until string, now time.Time) (time.Time, time.Time, error) {
	start, err := time.Parse(dateLayout, since)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("since: %w", err)
	}
	end := now.Truncate(24 * time.Hour)
	if until != "" {
		end, err = time.Parse(dateLayout, until)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("until: %w", err)
		}
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("since %s must precede until %s",
			start.Format(dateLayout), end.Format(dateLayout))
	}
	return start, end, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
