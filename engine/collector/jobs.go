package collector

import (
	"time"

	"github.com/VoxPulseAI/voxpulse/engine/domain"
)

// JobsSubject is the NATS request subject the collector daemon serves
// scrape jobs on.
const JobsSubject = "voxpulse.collector.jobs"

// Job asks the collector daemon to scrape one keyword across its
// platforms.
type Job struct {
	Keyword  string `json:"keyword"`
	Headless bool   `json:"headless"`
}

// PlatformResult is one platform's share of a finished job.
type PlatformResult struct {
	Collected   int    `json:"collected"`
	Published   int    `json:"published"`
	Termination string `json:"termination"`
}

// JobResult reports what a job collected.
type JobResult struct {
	Keyword   string                    `json:"keyword"`
	Collected int                       `json:"collected"`
	Platforms map[string]PlatformResult `json:"platforms,omitempty"`
}

// Post converts a collected record into the pipeline form. Missing
// author or timestamp fields map to empty strings; enrichment fills in
// what it can downstream.
func (r Record) Post(platform, keyword string, scrapedAt time.Time) domain.Post {
	return domain.Post{
		Platform:  platform,
		Keyword:   keyword,
		Text:      r.Text,
		Author:    r.Author.Value,
		PostedAt:  r.PostedAt.Value,
		ScrapedAt: scrapedAt,
	}
}
