// Command export fetches a stats snapshot from the API, computes deltas
// against the previous run, and writes JSON files for the dashboard.
// With -keyword it also dumps that keyword's recent posts as CSV.
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/VoxPulseAI/voxpulse/engine/domain"
	"github.com/VoxPulseAI/voxpulse/engine/report"
)

// Delta represents changes between two consecutive snapshots.
type Delta struct {
	Timestamp    time.Time `json:"timestamp"`
	Period       string    `json:"period"`
	NewNodes     int64     `json:"new_nodes"`
	NewRelations int64     `json:"new_relations"`
	NewVectors   int64     `json:"new_vectors"`
	NewKeywords  []string  `json:"new_keywords,omitempty"`
}

const maxHistory = 288

func main() {
	apiURL := flag.String("api", "http://localhost:8080", "API base URL")
	docsDir := flag.String("docs-dir", "docs", "docs directory for output")
	keyword := flag.String("keyword", "", "also dump this keyword's recent posts as CSV")
	limit := flag.Int("limit", 200, "post count for the CSV dump")
	push := flag.Bool("push", false, "git commit and push after update")
	flag.Parse()

	dataDir := filepath.Join(*docsDir, "data")
	os.MkdirAll(dataDir, 0o755)

	latestPath := filepath.Join(dataDir, "snapshot-latest.json")
	historyPath := filepath.Join(dataDir, "snapshot-history.json")
	prevPath := filepath.Join(dataDir, ".snapshot-prev.json")

	body, err := fetchJSON(*apiURL + "/api/v1/stats/snapshot")
	if err != nil {
		log.Fatalf("fetch snapshot: %v", err)
	}

	var current report.Snapshot
	if err := json.Unmarshal(body, &current); err != nil {
		log.Fatalf("parse snapshot: %v", err)
	}

	// Previous snapshot for the delta; a missing file means zeros.
	var prev report.Snapshot
	if data, err := os.ReadFile(prevPath); err == nil {
		json.Unmarshal(data, &prev)
	}

	delta := Delta{
		Timestamp:    current.Timestamp,
		Period:       "5m",
		NewNodes:     current.TotalNodes - prev.TotalNodes,
		NewRelations: current.TotalRelationships - prev.TotalRelationships,
		NewVectors:   int64(current.VectorCount) - int64(prev.VectorCount),
		NewKeywords:  newKeywords(prev.Keywords, current.Keywords),
	}

	if err := os.WriteFile(latestPath, body, 0o644); err != nil {
		log.Fatalf("write latest: %v", err)
	}

	var history []Delta
	if data, err := os.ReadFile(historyPath); err == nil {
		json.Unmarshal(data, &history)
	}
	history = append(history, delta)
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	histData, _ := json.MarshalIndent(history, "", "  ")
	os.WriteFile(historyPath, histData, 0o644)

	os.WriteFile(prevPath, body, 0o644)

	fmt.Printf("Snapshot at %s (nodes: %d, rels: %d, vectors: %d, keywords: %d)\n",
		current.Timestamp.Format(time.RFC3339),
		current.TotalNodes, current.TotalRelationships, current.VectorCount, len(current.Keywords))
	fmt.Printf("Delta: +%d nodes, +%d rels, +%d vectors, %d new keywords\n",
		delta.NewNodes, delta.NewRelations, delta.NewVectors, len(delta.NewKeywords))

	if *keyword != "" {
		csvPath := filepath.Join(dataDir, "posts-"+fileSafe(*keyword)+".csv")
		n, err := exportCSV(*apiURL, *keyword, *limit, csvPath)
		if err != nil {
			log.Fatalf("csv export: %v", err)
		}
		fmt.Printf("Wrote %d posts to %s\n", n, csvPath)
	}

	if *push {
		gitCommitPush(*docsDir)
	}
}

func fetchJSON(url string) ([]byte, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("API returned %d: %s", resp.StatusCode, body)
	}
	return body, nil
}

// newKeywords lists entries in cur that prev lacks.
func newKeywords(prev, cur []string) []string {
	seen := make(map[string]bool, len(prev))
	for _, k := range prev {
		seen[k] = true
	}
	var fresh []string
	for _, k := range cur {
		if !seen[k] {
			fresh = append(fresh, k)
		}
	}
	return fresh
}

// csvHeader is the column order spreadsheets see.
var csvHeader = []string{"platform", "keyword", "author", "posted_at", "scraped_at", "sentiment", "phase", "text"}

// exportCSV dumps a keyword's recent posts. The file starts with a
// UTF-8 BOM so Excel detects the encoding.
func exportCSV(apiURL, keyword string, limit int, path string) (int, error) {
	q := url.Values{"keyword": {keyword}, "limit": {strconv.Itoa(limit)}}
	body, err := fetchJSON(apiURL + "/api/v1/posts?" + q.Encode())
	if err != nil {
		return 0, err
	}
	var posts []domain.Post
	if err := json.Unmarshal(body, &posts); err != nil {
		return 0, err
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	if _, err := f.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return 0, err
	}

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return 0, err
	}
	for _, p := range posts {
		row := []string{
			p.Platform,
			p.Keyword,
			p.Author,
			p.PostedTime().UTC().Format(time.RFC3339),
			p.ScrapedAt.UTC().Format(time.RFC3339),
			p.Sentiment,
			string(p.Phase),
			p.Text,
		}
		if err := w.Write(row); err != nil {
			return 0, err
		}
	}
	w.Flush()
	return len(posts), w.Error()
}

func fileSafe(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}

func gitCommitPush(docsDir string) {
	cmds := [][]string{
		{"git", "add", filepath.Join(docsDir, "data/")},
		{"git", "commit", "-m", fmt.Sprintf("data: snapshot %s", time.Now().UTC().Format("2006-01-02T15:04"))},
		{"git", "push"},
	}
	for _, args := range cmds {
		cmd := exec.Command(args[0], args[1:]...)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			log.Printf("git %v: %v", args, err)
		}
	}
}
