package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"serpwatch/config"
	"serpwatch/models"
	"serpwatch/scraper"
	"serpwatch/storage"
)

// Triggerable allows workers to be triggered manually
type Triggerable interface {
	Trigger()
}

// Scheduler drives scheduled pipeline runs and dispatches commands the
// dashboard writes into the queue database.
type Scheduler struct {
	cfg          *config.Config
	orchestrator *scraper.Orchestrator
	queue        *storage.QueueStore
	cron         *cron.Cron
	ticker       *time.Ticker
	stopCh       chan struct{}

	renderingWorker Triggerable
}

func New(cfg *config.Config, orchestrator *scraper.Orchestrator, queue *storage.QueueStore) *Scheduler {
	return &Scheduler{
		cfg:          cfg,
		orchestrator: orchestrator,
		queue:        queue,
		cron:         cron.New(),
		stopCh:       make(chan struct{}),
	}
}

// SetRenderingWorker registers the rendering worker for manual triggering
func (s *Scheduler) SetRenderingWorker(w Triggerable) {
	s.renderingWorker = w
}

func (s *Scheduler) Start(ctx context.Context) error {
	go s.pollCommands(ctx)

	if s.cfg.Scheduler.Cron != "" {
		log.Printf("Starting scheduler with cron: %s", s.cfg.Scheduler.Cron)
		_, err := s.cron.AddFunc(s.cfg.Scheduler.Cron, func() {
			s.runScheduled(ctx)
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	} else if s.cfg.Scheduler.Interval > 0 {
		log.Printf("Starting scheduler with interval: %s", s.cfg.Scheduler.Interval)
		s.ticker = time.NewTicker(s.cfg.Scheduler.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					s.runScheduled(ctx)
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		log.Println("No schedule configured, daemon will only respond to commands")
	}

	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

// runScheduled seeds every platform's watch list and drains the queue
func (s *Scheduler) runScheduled(ctx context.Context) {
	if _, err := s.orchestrator.SeedAll(ctx); err != nil {
		log.Printf("Scheduled seed error: %v", err)
	}
	if err := s.orchestrator.RunBatch(ctx); err != nil {
		log.Printf("Scheduled run error: %v", err)
	}
}

func (s *Scheduler) pollCommands(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cmds, err := s.queue.GetPendingCommands()
			if err != nil {
				log.Printf("Error getting commands: %v", err)
				continue
			}

			for _, cmd := range cmds {
				log.Printf("Processing command: %s", cmd.Command)
				if err := s.handleCommand(ctx, &cmd); err != nil {
					log.Printf("Command error: %v", err)
				}
				if err := s.queue.MarkCommandProcessed(cmd.ID); err != nil {
					log.Printf("Error marking command processed: %v", err)
				}
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) handleCommand(ctx context.Context, cmd *models.Command) error {
	params, err := s.queue.ParseCommandParams(cmd)
	if err != nil {
		return fmt.Errorf("parse command params: %w", err)
	}

	switch cmd.Command {
	case models.CmdRunRenderings:
		if s.renderingWorker != nil {
			s.renderingWorker.Trigger()
			log.Println("Rendering worker triggered via command")
		}
		return nil
	default:
		return s.orchestrator.HandleCommand(ctx, cmd, params)
	}
}

// TriggerNow runs one batch immediately without seeding
func (s *Scheduler) TriggerNow(ctx context.Context) error {
	return s.orchestrator.RunBatch(ctx)
}
