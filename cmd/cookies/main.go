// Command cookies captures a credential bundle. It opens a visible
// browser on the platform's sign-in page, waits for a manual login, and
// exports the resulting cookies in both bundle forms.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/VoxPulseAI/voxpulse/engine/collector"
)

func main() {
	var (
		platform = flag.String("platform", "x", "platform to capture credentials for")
		out      = flag.String("out", ".", "directory for the bundle files")
	)
	flag.Parse()

	plat, err := collector.ByName(*platform)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sess, err := collector.NewSession(ctx, plat, collector.Options{Headless: false}, nil)
	if err != nil {
		log.Fatalf("browser: %v", err)
	}
	defer sess.Close()

	if err := sess.Open(ctx, plat.BaseURL()+"/login"); err != nil {
		log.Fatalf("open login page: %v", err)
	}

	fmt.Fprintf(os.Stderr, "Log in to %s in the browser window, then press Enter here.\n", plat.Name())
	if err := waitForEnter(ctx); err != nil {
		log.Fatalf("capture cancelled: %v", err)
	}

	cookies, err := sess.ExportCookies(ctx)
	if err != nil {
		log.Fatalf("export: %v", err)
	}
	if len(cookies) == 0 {
		log.Fatal("no cookies in the session; did the login complete?")
	}

	if err := os.MkdirAll(*out, 0o700); err != nil {
		log.Fatalf("out dir: %v", err)
	}
	jsonPath := filepath.Join(*out, plat.Name()+"_cookies.json")
	gobPath := filepath.Join(*out, plat.Name()+"_cookies.gob")
	if err := collector.SaveBundleJSON(jsonPath, cookies); err != nil {
		log.Fatal(err)
	}
	if err := collector.SaveBundleGob(gobPath, cookies); err != nil {
		log.Fatal(err)
	}
	log.Printf("saved %d cookies to %s and %s", len(cookies), jsonPath, gobPath)
}

// waitForEnter blocks until the user confirms on stdin or ctx ends. A
// closed stdin counts as confirmation so piped runs proceed.
func waitForEnter(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		_, err := bufio.NewReader(os.Stdin).ReadString('\n')
		done <- err
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	}
}
