package collector

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// Cookie is one credential-bundle entry. Bundles are captured from a
// real signed-in browser by cmd/cookies and restored into scrape
// sessions so searches run authenticated.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path,omitempty"`
	Expires  float64 `json:"expires,omitempty"` // unix seconds, 0 for session cookies
	Secure   bool    `json:"secure,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	SameSite string  `json:"sameSite,omitempty"`
}

// check reports why an entry cannot be injected into a browser.
func (c Cookie) check() error {
	switch {
	case c.Name == "":
		return errors.New("missing name")
	case c.Value == "":
		return errors.New("missing value")
	case c.Domain == "":
		return errors.New("missing domain")
	}
	return nil
}

// LoadBundle reads a credential bundle from path, trying the JSON form
// first and the gob form second. Entries that fail validation are
// dropped with a warning; only an unreadable or undecodable file is an
// error. Callers treat any error as "proceed unauthenticated".
func LoadBundle(path string, log *slog.Logger) ([]Cookie, error) {
	if log == nil {
		log = slog.Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("collector: read bundle: %w", err)
	}

	var cookies []Cookie
	if jsonErr := json.Unmarshal(data, &cookies); jsonErr != nil {
		if gobErr := gob.NewDecoder(bytes.NewReader(data)).Decode(&cookies); gobErr != nil {
			return nil, fmt.Errorf("collector: bundle %s decodes as neither JSON (%v) nor gob: %w", path, jsonErr, gobErr)
		}
	}

	valid := make([]Cookie, 0, len(cookies))
	for i, c := range cookies {
		if err := c.check(); err != nil {
			log.Warn("collector: skipping bundle entry", "path", path, "index", i, "error", err)
			continue
		}
		valid = append(valid, c)
	}
	return valid, nil
}

// SaveBundleJSON writes cookies as an indented JSON array, the primary
// bundle form.
func SaveBundleJSON(path string, cookies []Cookie) error {
	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return fmt.Errorf("collector: encode bundle: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("collector: write bundle: %w", err)
	}
	return nil
}

// SaveBundleGob writes cookies in the binary form kept for tooling that
// predates the JSON bundles.
func SaveBundleGob(path string, cookies []Cookie) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(cookies); err != nil {
		return fmt.Errorf("collector: encode bundle: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("collector: write bundle: %w", err)
	}
	return nil
}
