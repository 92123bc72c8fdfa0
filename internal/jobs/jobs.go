// Package jobs runs the periodic background work: stock and expiry alerts and
// pruning of revoked session tokens.
package jobs

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"pharmapos/m/internal/store"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Pruner forgets revoked tokens that have expired.
type Pruner interface {
	PruneRevoked() int
}

type Config struct {
	AlertSchedule   string
	ExpiryAlertDays int
	Location        *time.Location
}

// Alerts is the result of one stock sweep.
type Alerts struct {
	LowStock int
	Expiring int
}

type Scheduler struct {
	cron   *cron.Cron
	db     sqlx.ExtContext
	pruner Pruner
	cfg    Config
	log    *zap.SugaredLogger
}

func New(db sqlx.ExtContext, pruner Pruner, cfg Config, log *zap.Logger) (*Scheduler, error) {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if log == nil {
		log = zap.L()
	}
	s := &Scheduler{
		cron:   cron.New(cron.WithLocation(cfg.Location), cron.WithParser(cronParser)),
		db:     db,
		pruner: pruner,
		cfg:    cfg,
		log:    log.Sugar(),
	}
	if _, err := s.cron.AddFunc(cfg.AlertSchedule, s.runAlerts); err != nil {
		return nil, err
	}
	if _, err := s.cron.AddFunc("@every 15m", s.runPrune); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs or ctx, whichever is first.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// SweepStock logs every product at or below its reorder level and every
// in-stock product expiring within the configured window.
func (s *Scheduler) SweepStock(ctx context.Context) (Alerts, error) {
	catalog := store.NewCatalog(s.db)
	low, err := catalog.LowStock(ctx)
	if err != nil {
		return Alerts{}, err
	}
	for _, p := range low {
		s.log.Warnw("low stock", "product_id", p.ID, "name", p.Name, "stock_level", p.StockLevel, "min_stock_level", p.MinStockLevel)
	}
	cutoff := time.Now().In(s.cfg.Location).AddDate(0, 0, s.cfg.ExpiryAlertDays)
	expiring, err := catalog.Expiring(ctx, cutoff)
	if err != nil {
		return Alerts{}, err
	}
	for _, p := range expiring {
		s.log.Warnw("expiring stock", "product_id", p.ID, "name", p.Name, "batch", p.BatchNumber, "expiry_date", p.ExpiryDate.Format("2006-01-02"), "stock_level", p.StockLevel)
	}
	return Alerts{LowStock: len(low), Expiring: len(expiring)}, nil
}

func (s *Scheduler) runAlerts() {
	defer func() {
		if err := recover(); err != nil {
			s.log.Error(err)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	alerts, err := s.SweepStock(ctx)
	if err != nil {
		s.log.Errorf("stock alert sweep failed: %v", err)
		return
	}
	s.log.Infof("stock alert sweep: %d low, %d expiring", alerts.LowStock, alerts.Expiring)
}

func (s *Scheduler) runPrune() {
	defer func() {
		if err := recover(); err != nil {
			s.log.Error(err)
		}
	}()
	if n := s.pruner.PruneRevoked(); n > 0 {
		s.log.Debugf("pruned %d revoked session tokens", n)
	}
}
