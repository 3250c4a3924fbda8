// Package collector runs the operator workflows: refreshing the PBR cache,
// showing it, and computing and plotting the indicators.
package collector

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/dyike/twpbr/config"
	"github.com/dyike/twpbr/internal/dataflows"
	"github.com/dyike/twpbr/internal/display"
	"github.com/dyike/twpbr/internal/gitsync"
	"github.com/dyike/twpbr/internal/storage"
)

// CommitMessage is used for every cache update pushed to the remote.
const CommitMessage = "更新 TWSE 資料"

// ErrEmptyCache is returned when a workflow needs cached counts and has none.
var ErrEmptyCache = errors.New("pbr cache is empty")

// Syncer keeps the cache directory in step with the remote repository.
type Syncer interface {
	Init(ctx context.Context) error
	Download(ctx context.Context) error
	Attach()
	Dir() string
	CommitAndPush(ctx context.Context, file, message string) error
	Delete(ctx context.Context, file, message string) error
}

// Recorder stores computed indicator runs.
type Recorder interface {
	SaveRun(ctx context.Context, run storage.Run, points []storage.Point) (string, error)
}

type Collector struct {
	cfg       *config.Config
	pbr       dataflows.PBRSource
	valuation dataflows.ValuationSource
	prices    dataflows.PriceSource
	syncer    Syncer
	recorder  Recorder
	display   *display.ResultsDisplay
	noSync    bool

	closers []io.Closer
}

type Option func(*Collector)

func WithPBRSource(src dataflows.PBRSource) Option {
	return func(c *Collector) { c.pbr = src }
}

func WithValuationSource(src dataflows.ValuationSource) Option {
	return func(c *Collector) { c.valuation = src }
}

func WithPriceSource(src dataflows.PriceSource) Option {
	return func(c *Collector) { c.prices = src }
}

func WithSyncer(s Syncer) Option {
	return func(c *Collector) { c.syncer = s }
}

func WithRecorder(r Recorder) Option {
	return func(c *Collector) { c.recorder = r }
}

// WithOutput sends operator output to w instead of stdout.
func WithOutput(w io.Writer) Option {
	return func(c *Collector) { c.display = display.NewResultsDisplay(w) }
}

// WithNoSync skips every git step; the cache is read and written locally.
func WithNoSync(noSync bool) Option {
	return func(c *Collector) { c.noSync = noSync }
}

// New wires the collector from cfg. Options replace individual components.
// The run history is optional: when it cannot be opened runs are not recorded.
func New(cfg *config.Config, opts ...Option) (*Collector, error) {
	c := &Collector{
		cfg:    cfg,
		noSync: !cfg.SyncEnabled,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.pbr == nil || c.valuation == nil {
		twse := dataflows.NewTWSEClient(cfg)
		if c.pbr == nil {
			c.pbr = twse
		}
		if c.valuation == nil {
			c.valuation = twse
		}
	}
	if c.prices == nil {
		prices, err := dataflows.NewPriceSource(cfg)
		if err != nil {
			return nil, err
		}
		c.prices = prices
	}
	if c.syncer == nil {
		c.syncer = gitsync.New(cfg)
	}
	if c.display == nil {
		c.display = display.NewResultsDisplay(nil)
	}
	if c.recorder == nil && cfg.HistoryDB != "" {
		store, err := storage.Open(cfg.HistoryDB)
		if err != nil {
			logrus.WithFields(logrus.Fields{"module": "collector", "method": "New"}).
				WithError(err).Warn("run history disabled")
		} else {
			c.recorder = store
			c.closers = append(c.closers, store)
		}
	}
	return c, nil
}

// Close releases the run history.
func (c *Collector) Close() error {
	var errs []error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// Display is the operator output of the collector.
func (c *Collector) Display() *display.ResultsDisplay {
	return c.display
}

func (c *Collector) record(ctx context.Context, run storage.Run, points []storage.Point) string {
	if c.recorder == nil {
		return ""
	}
	id, err := c.recorder.SaveRun(ctx, run, points)
	if err != nil {
		logrus.WithFields(logrus.Fields{"module": "collector", "method": "record", "kind": run.Kind}).
			WithError(err).Warn("run not recorded")
		return ""
	}
	return id
}

func (c *Collector) syncDisabled(op string) error {
	if c.noSync {
		return fmt.Errorf("%s needs git sync, which is disabled", op)
	}
	return nil
}
