// Package rulesfile reads and writes focus rules as YAML and watches the
// file for edits.
package rulesfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/xvierd/focus-cli/internal/domain"
)

// FormatVersion is written to every exported file.
const FormatVersion = 1

// Document is the on-disk layout.
type Document struct {
	Version   int      `yaml:"version"`
	Selected  string   `yaml:"selected,omitempty"`
	Displayed []string `yaml:"displayed,omitempty"`
	Rules     []Rule   `yaml:"rules"`
}

// Rule is one focus rule in the file. A missing id is derived from name.
type Rule struct {
	ID              string   `yaml:"id,omitempty"`
	Name            string   `yaml:"name"`
	DurationMinutes int      `yaml:"duration_minutes"`
	StrictMode      bool     `yaml:"strict_mode,omitempty"`
	BlockedApps     []string `yaml:"blocked_apps,omitempty"`
	AllowedApps     []string `yaml:"allowed_apps,omitempty"`
	MinimizedApps   []string `yaml:"minimized_apps,omitempty"`
}

// NewDocument builds an export document.
func NewDocument(rules []*domain.FocusRule, displayed []string, selected string) *Document {
	doc := &Document{
		Version:   FormatVersion,
		Selected:  selected,
		Displayed: displayed,
		Rules:     make([]Rule, 0, len(rules)),
	}
	for _, r := range rules {
		doc.Rules = append(doc.Rules, Rule{
			ID:              r.ID,
			Name:            r.Name,
			DurationMinutes: r.DurationMinutes,
			StrictMode:      r.StrictMode,
			BlockedApps:     r.BlockedApps,
			AllowedApps:     r.AllowedApps,
			MinimizedApps:   r.MinimizedApps,
		})
	}
	return doc
}

// FocusRules converts and validates the file's rules. Every invalid entry
// is reported; duplicates of an earlier id are rejected.
func (d *Document) FocusRules() ([]*domain.FocusRule, error) {
	var (
		out  []*domain.FocusRule
		errs []error
		seen = make(map[string]bool, len(d.Rules))
	)
	for i, r := range d.Rules {
		rule := &domain.FocusRule{
			ID:              r.ID,
			Name:            r.Name,
			DurationMinutes: r.DurationMinutes,
			StrictMode:      r.StrictMode,
			BlockedApps:     r.BlockedApps,
			AllowedApps:     r.AllowedApps,
			MinimizedApps:   r.MinimizedApps,
		}
		if rule.ID == "" {
			rule.ID = domain.Slugify(r.Name)
		}
		rule.Normalize()
		if err := rule.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("rule %d: %w", i+1, err))
			continue
		}
		if seen[rule.ID] {
			errs = append(errs, fmt.Errorf("rule %d: %w: %s", i+1, domain.ErrRuleIDConflict, rule.ID))
			continue
		}
		seen[rule.ID] = true
		out = append(out, rule)
	}
	return out, errors.Join(errs...)
}

// Encode writes doc as YAML.
func Encode(w io.Writer, doc *Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode rules: %w", err)
	}
	return enc.Close()
}

// Decode reads a YAML document.
func Decode(r io.Reader) (*Document, error) {
	var doc Document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return &Document{Version: FormatVersion}, nil
		}
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	if doc.Version > FormatVersion {
		return nil, fmt.Errorf("unsupported rules file version %d", doc.Version)
	}
	return &doc, nil
}

// Write saves doc to path, replacing the file atomically.
func Write(path string, doc *Document) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create rules directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".rules-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := Encode(tmp, doc); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write rules: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace rules file: %w", err)
	}
	return nil
}

// Read loads the document at path.
func Read(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open rules file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Decode(f)
}

// debounce collapses the burst of events editors emit on save.
const debounce = 150 * time.Millisecond

// Watch calls onChange with the freshly parsed document every time the file
// at path is written, created or renamed into place, until ctx is done. The
// parent directory is watched so editors that replace the file still
// trigger.
func Watch(ctx context.Context, path string, onChange func(*Document, error)) error {
	path, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	var timer *time.Timer
	fire := make(chan struct{}, 1)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case <-fire:
			if _, err := os.Stat(path); err != nil {
				continue
			}
			onChange(Read(path))

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			onChange(nil, fmt.Errorf("watch error: %w", err))
		}
	}
}
