package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"rentscout/config"
	"rentscout/models"
)

// Triggerable allows workers to be triggered manually
type Triggerable interface {
	Trigger()
}

// Watcher runs saved searches and applies commands addressed to them.
type Watcher interface {
	RunAll(ctx context.Context) error
	HandleCommand(ctx context.Context, cmd *models.Command) error
}

// CommandQueue is the command table the daemon polls.
type CommandQueue interface {
	GetPendingCommands() ([]models.Command, error)
	MarkCommandProcessed(id int64) error
}

type Scheduler struct {
	cfg          config.SchedulerConfig
	watch        Watcher
	commands     CommandQueue
	logger       *logrus.Logger
	cron         *cron.Cron
	ticker       *time.Ticker
	stopCh       chan struct{}
	stopOnce     sync.Once
	pollInterval time.Duration

	exportWorker Triggerable
	pruner       Pruner
}

// Pruner forgets listings that have not been seen for a while.
type Pruner interface {
	PruneSeen(ctx context.Context, before time.Time) (int64, error)
}

func New(cfg config.SchedulerConfig, watch Watcher, commands CommandQueue, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Scheduler{
		cfg:          cfg,
		watch:        watch,
		commands:     commands,
		logger:       logger,
		cron:         cron.New(),
		stopCh:       make(chan struct{}),
		pollInterval: 2 * time.Second,
	}
}

// SetExportWorker registers the export worker for manual triggering
func (s *Scheduler) SetExportWorker(w Triggerable) {
	s.exportWorker = w
}

// SetPruner enables hourly pruning of seen listings older than
// cfg.SeenRetention.
func (s *Scheduler) SetPruner(p Pruner) {
	s.pruner = p
}

func (s *Scheduler) Start(ctx context.Context) error {
	go s.pollCommands(ctx)
	if s.pruner != nil && s.cfg.SeenRetention > 0 {
		go s.pollPrune(ctx)
	}

	if s.cfg.Cron != "" {
		s.logger.Infof("Starting scheduler with cron: %s", s.cfg.Cron)
		_, err := s.cron.AddFunc(s.cfg.Cron, func() { s.runAll(ctx) })
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	} else if s.cfg.Interval > 0 {
		s.logger.Infof("Starting scheduler with interval: %s", s.cfg.Interval)
		s.ticker = time.NewTicker(s.cfg.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					s.runAll(ctx)
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		s.logger.Info("No schedule configured, daemon will only respond to commands")
	}

	return nil
}

func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		if s.cron != nil {
			<-s.cron.Stop().Done()
		}
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
	})
}

// TriggerNow runs every saved search outside the schedule and then wakes
// the export worker so queued exports go out without waiting for its tick.
func (s *Scheduler) TriggerNow(ctx context.Context) error {
	if err := s.watch.RunAll(ctx); err != nil {
		return err
	}
	if s.exportWorker != nil {
		s.exportWorker.Trigger()
	}
	return nil
}

func (s *Scheduler) runAll(ctx context.Context) {
	if err := s.watch.RunAll(ctx); err != nil {
		s.logger.WithError(err).Error("Scheduled run error")
	}
}

func (s *Scheduler) pollCommands(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.drainCommands(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) drainCommands(ctx context.Context) {
	cmds, err := s.commands.GetPendingCommands()
	if err != nil {
		s.logger.WithError(err).Error("Error getting commands")
		return
	}

	for i := range cmds {
		cmd := &cmds[i]
		s.logger.Infof("Processing command: %s", cmd.Command)
		if err := s.handleCommand(ctx, cmd); err != nil {
			s.logger.WithError(err).Errorf("Command %s failed", cmd.Command)
		}
		if err := s.commands.MarkCommandProcessed(cmd.ID); err != nil {
			s.logger.WithError(err).Error("Error marking command processed")
		}
	}
}

func (s *Scheduler) handleCommand(ctx context.Context, cmd *models.Command) error {
	switch cmd.Command {
	case models.CmdRunExports:
		if s.exportWorker != nil {
			s.exportWorker.Trigger()
			s.logger.Info("Export worker triggered via command")
		}
		return nil
	default:
		return s.watch.HandleCommand(ctx, cmd)
	}
}

func (s *Scheduler) pollPrune(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.prune(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) prune(ctx context.Context) {
	n, err := s.pruner.PruneSeen(ctx, time.Now().Add(-s.cfg.SeenRetention))
	if err != nil {
		s.logger.WithError(err).Error("Error pruning seen listings")
		return
	}
	if n > 0 {
		s.logger.Infof("Pruned %d seen listings", n)
	}
}
