// Package fetch provides file-backed domain fetchers.
//
// A fixture directory holds one file per domain, named after the domain
// (code-review.yaml, issue-tracker.json, ...). A per-user subdirectory,
// when present, takes precedence:
//
//	fixtures/
//	  alice/messaging.yaml
//	  messaging.yaml
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vinayprograms/workbrief/internal/brief"
	"github.com/vinayprograms/workbrief/internal/workers"
)

// ErrNoFixture is returned when no file exists for a domain.
var ErrNoFixture = errors.New("no fixture")

var extensions = []string{".yaml", ".yml", ".json"}

// Fixture reads one domain's payload from a directory.
type Fixture struct {
	dir    string
	domain brief.Domain
}

// NewFixture creates a fetcher for domain rooted at dir.
func NewFixture(dir string, domain brief.Domain) *Fixture {
	return &Fixture{dir: dir, domain: domain}
}

// All returns a fetcher for every domain.
func All(dir string) map[brief.Domain]workers.Fetcher {
	out := make(map[brief.Domain]workers.Fetcher, len(brief.Domains))
	for _, d := range brief.Domains {
		out[d] = NewFixture(dir, d)
	}
	return out
}

// Fetch loads the fixture for user.
func (f *Fixture) Fetch(ctx context.Context, user string) (*workers.Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := f.locate(user)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}

	var p workers.Payload
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &p)
	} else {
		err = yaml.Unmarshal(data, &p)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse fixture %s: %w", path, err)
	}
	if p.Domain != "" && p.Domain != f.domain {
		return nil, fmt.Errorf("fixture %s is for domain %s, not %s", path, p.Domain, f.domain)
	}
	p.Domain = f.domain
	if p.User == "" {
		p.User = user
	}
	return &p, nil
}

func (f *Fixture) locate(user string) (string, error) {
	var dirs []string
	if user != "" && !strings.ContainsAny(user, `/\`) && user != "." && user != ".." {
		dirs = append(dirs, filepath.Join(f.dir, user))
	}
	dirs = append(dirs, f.dir)

	for _, dir := range dirs {
		for _, ext := range extensions {
			path := filepath.Join(dir, string(f.domain)+ext)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}
	}
	return "", fmt.Errorf("%w for %s in %s", ErrNoFixture, f.domain, f.dir)
}
