package barfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"trading-signals/internal/model"
)

// Dir serves <dir>/<ticker>.<ext> files as a bar source. Reads try every
// format in Formats order; writes use the configured format.
type Dir struct {
	root   string
	format Format

	mu sync.Mutex // serialises writes to the same directory
}

// NewDir opens a bar directory, creating it if needed. Written files use format.
func NewDir(root string, format Format) (*Dir, error) {
	if _, err := ParseFormat(string(format)); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("barfile: %w", err)
	}
	return &Dir{root: root, format: format}, nil
}

func (d *Dir) Name() string { return "file" }

// Bars loads the ticker's file, sorts it by time and applies q's window.
// Sorting does not merge duplicates; the engine rejects those.
func (d *Dir) Bars(ctx context.Context, q model.BarQuery) ([]model.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := d.lookup(q.Ticker)
	if err != nil {
		return nil, err
	}
	bars, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return q.Window(bars), nil
}

// WriteBars replaces the ticker's file with bars.
func (d *Dir) WriteBars(ctx context.Context, ticker string, bars []model.Bar) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if filepath.Base(ticker) != ticker {
		return fmt.Errorf("barfile: invalid ticker %q", ticker)
	}
	tmp := d.path("."+ticker+".tmp", d.format)
	if err := WriteFile(tmp, bars); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("barfile: write %s: %w", ticker, err)
	}
	return os.Rename(tmp, d.path(ticker, d.format))
}

// Tickers lists the tickers with a readable file.
func (d *Dir) Tickers() ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if _, err := FormatOf(name); err != nil {
			continue
		}
		t := name[:len(name)-len(filepath.Ext(name))]
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (d *Dir) Close() error { return nil }

func (d *Dir) path(ticker string, f Format) string {
	return filepath.Join(d.root, ticker+"."+string(f))
}

func (d *Dir) lookup(ticker string) (string, error) {
	if ticker == "" || filepath.Base(ticker) != ticker {
		return "", fmt.Errorf("barfile: ticker %q: %w", ticker, model.ErrUnknownSymbol)
	}
	for _, f := range Formats {
		p := d.path(ticker, f)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("barfile: no file for %s in %s: %w", ticker, d.root, model.ErrUnknownSymbol)
}
