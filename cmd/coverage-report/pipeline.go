package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jupierce/coverage-report/pkg/config"
	"github.com/jupierce/coverage-report/pkg/history"
	"github.com/jupierce/coverage-report/pkg/log"
	"github.com/jupierce/coverage-report/pkg/report"
	"github.com/jupierce/coverage-report/pkg/screenshot"
)

// pipeline runs parse -> render -> capture for one invocation.
type pipeline struct {
	cfg      *config.Config
	logger   *log.Logger
	capturer screenshot.Capturer
	now      func() time.Time
}

func newPipeline(cfg *config.Config, logger *log.Logger) *pipeline {
	return &pipeline{
		cfg:      cfg,
		logger:   logger,
		capturer: screenshot.NewChrome(cfg.Screenshot.Output, cfg.Screenshot.Selector, cfg.Screenshot.Timeout),
		now:      time.Now,
	}
}

// parse reads the module path and the profile, and records the run in the
// history database when one is configured.
func (p *pipeline) parse(ctx context.Context) (*report.Table, string, error) {
	module, err := report.ModulePath(p.cfg.Manifest)
	if err != nil {
		return nil, "", fmt.Errorf("read module path: %w", err)
	}
	p.logger.Debug("Module path: %s (from %s)", module, p.cfg.Manifest)

	parser := &report.Parser{Module: module, Exclude: p.cfg.Exclude}
	table, err := parser.ParseFile(p.cfg.Profile)
	if err != nil {
		return nil, "", err
	}
	p.logger.Info("Parsed %d functions in %d files from %s", table.RecordCount(), table.Len(), p.cfg.Profile)

	if p.cfg.History.DB != "" {
		id, err := p.record(ctx, module, table)
		if err != nil {
			return nil, "", err
		}
		p.logger.Debug("Recorded run %d in %s", id, p.cfg.History.DB)
	}

	return table, module, nil
}

func (p *pipeline) record(ctx context.Context, module string, table *report.Table) (int64, error) {
	store, err := history.Open(p.cfg.History.DB)
	if err != nil {
		return 0, fmt.Errorf("open history: %w", err)
	}
	defer store.Close()

	id, err := store.Save(ctx, history.Run{
		Module:      module,
		Profile:     p.cfg.Profile,
		GeneratedAt: p.now(),
		Table:       table,
	})
	if err != nil {
		return 0, fmt.Errorf("record run: %w", err)
	}
	return id, nil
}

// renderer builds a Renderer from the config. Templates are only loaded for
// the HTML target.
func (p *pipeline) renderer(target report.Target) (*report.Renderer, error) {
	var templates report.TemplateRenderer
	if target == report.HTML {
		t, err := report.LoadTemplates(p.cfg.HTML.TemplateDir)
		if err != nil {
			return nil, err
		}
		templates = t
	}

	r := report.NewRenderer(templates)
	r.MarkdownPath = p.cfg.Markdown.Output
	r.HTMLPath = p.cfg.HTML.Output
	r.ChunkSize = p.cfg.HTML.ChunkSize
	r.Now = p.now
	return r, nil
}

func (p *pipeline) render(table *report.Table, target report.Target) (string, error) {
	r, err := p.renderer(target)
	if err != nil {
		return "", err
	}
	return r.Render(table, target)
}

// screenshot renders the HTML report and hands it to the capturer. A failed
// capture removes the HTML unless screenshot.keep_html is set.
func (p *pipeline) screenshot(ctx context.Context, table *report.Table) (string, error) {
	if _, err := p.render(table, report.HTML); err != nil {
		return "", err
	}
	htmlPath := p.cfg.HTML.Output
	p.logger.Debug("Rendered %s", htmlPath)

	image, err := p.capturer.Capture(ctx, htmlPath)
	if err != nil {
		if !p.cfg.Screenshot.KeepHTML {
			if rmErr := os.Remove(htmlPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				p.logger.Warning("Could not remove %s: %v", htmlPath, rmErr)
			}
		}
		return "", fmt.Errorf("capture %s: %w", htmlPath, err)
	}
	return image, nil
}
