// Package scheduler runs the hub's periodic background jobs
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jashub/parcelhub/app/services"
	"github.com/jashub/parcelhub/config"
	"github.com/jashub/parcelhub/models"
	"github.com/jashub/parcelhub/pricing"
	"github.com/jashub/parcelhub/repository"
	"github.com/jashub/parcelhub/utils"
)

// ReminderSender is the part of NotificationService the scheduler needs
type ReminderSender interface {
	SendSMS(ctx context.Context, mobile, message string) error
	SendEmail(ctx context.Context, email, subject, message string) error
}

// OverdueScheduler reminds recipients once per newly started overdue month.
// Only one instance in a deployment runs a pass at a time, guarded by a Redis lock.
type OverdueScheduler struct {
	parcelRepo repository.ParcelRepository
	notifier   ReminderSender
	locker     services.Locker
	calc       pricing.Calculator
	metrics    services.ParcelMetrics
	logger     *log.Logger
	interval   time.Duration
	batch      int
	hubCfg     config.NotificationConfig
}

func NewOverdueScheduler(
	parcelRepo repository.ParcelRepository,
	notifier ReminderSender,
	locker services.Locker,
	calc pricing.Calculator,
	metrics services.ParcelMetrics,
	logger *log.Logger,
	schedCfg config.SchedulerConfig,
	hubCfg config.NotificationConfig,
) *OverdueScheduler {
	s := &OverdueScheduler{
		parcelRepo: parcelRepo,
		notifier:   notifier,
		locker:     locker,
		calc:       calc,
		metrics:    metrics,
		logger:     logger,
		interval:   schedCfg.OverdueReminderInterval,
		batch:      schedCfg.OverdueReminderBatch,
		hubCfg:     hubCfg,
	}
	if s.interval <= 0 {
		s.interval = time.Hour
	}
	if s.batch <= 0 {
		s.batch = 200
	}
	if s.locker == nil {
		s.locker = services.NewLocalLocker()
	}
	if s.metrics == nil {
		s.metrics = services.NoopParcelMetrics{}
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	return s
}

// Start launches the scheduler loop in a background goroutine and returns a stop function
func (s *OverdueScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return cancel
}

// runOnce processes one pass and returns how many reminders were sent
func (s *OverdueScheduler) runOnce(ctx context.Context) int {
	unlock, acquired, err := s.locker.TryLock(ctx, utils.ReminderLockKey, utils.ReminderLockTTL)
	if err != nil {
		s.logger.Printf("overdue: lock failed: %v", err)
		return 0
	}
	if !acquired {
		s.logger.Printf("overdue: another instance is running, skipping")
		return 0
	}
	defer unlock()

	now := s.calc.Now()
	cutoff := now.Add(-time.Duration(pricing.GracePeriodDays) * 24 * time.Hour)

	checked, sent := 0, 0
	var after *models.ParcelCursor
	for ctx.Err() == nil {
		page, err := s.parcelRepo.ListOverdueCandidates(ctx, cutoff, after, s.batch)
		if err != nil {
			s.logger.Printf("overdue: list candidates failed: %v", err)
			break
		}
		for _, p := range page {
			if ctx.Err() != nil {
				break
			}
			if s.process(ctx, p, now) {
				sent++
			}
		}
		checked += len(page)
		if len(page) < s.batch {
			break
		}
		after = models.CursorOf(page[len(page)-1])
	}
	if checked > 0 {
		s.logger.Printf("overdue: %d candidates checked, %d reminders sent", checked, sent)
	}
	return sent
}

// process reminds the recipient of p when a new overdue month has started since the last reminder
func (s *OverdueScheduler) process(ctx context.Context, p *models.Parcel, now time.Time) bool {
	res := s.calc.QuoteAt(p.Categories, p.BasePrice, p.CreatedAt, now)
	months := res.OverdueMonths()
	if months <= p.ReminderMonths {
		return false
	}
	if err := s.remind(ctx, p, res); err != nil {
		s.logger.Printf("overdue: reminder for %s failed: %v", p.TrackingNumber, err)
		return false
	}
	if err := s.parcelRepo.UpdateReminderMonths(ctx, p.ID, months); err != nil {
		s.logger.Printf("overdue: saving reminder month for %s failed: %v", p.TrackingNumber, err)
		return false
	}
	s.metrics.ReminderSent()
	return true
}

// remind emails the recipient, and texts them when a phone is on file. The email must succeed.
func (s *OverdueScheduler) remind(ctx context.Context, p *models.Parcel, res pricing.Result) error {
	hub := s.hubCfg.HubName
	if hub == "" {
		hub = "the parcel hub"
	}
	subject := fmt.Sprintf("Parcel %s is overdue for collection", p.TrackingNumber)
	body := fmt.Sprintf(
		"Hi %s,\n\nParcel %s from %s has been waiting at %s for %d days.\n"+
			"Amount due today: %s %.2f (base %.2f, overdue %.2f).\n"+
			"A further %s %.0f is added every %d days until it is collected.\n",
		p.RecipientName, p.TrackingNumber, p.CourierName, hub, res.DaysHeld,
		utils.Currency, res.TotalPrice, res.BasePrice, res.OverdueCharge,
		utils.Currency, pricing.MonthlyPenalty, pricing.OverduePeriodDays,
	)
	if err := s.notifier.SendEmail(ctx, p.RecipientEmail, subject, body); err != nil {
		return fmt.Errorf("email: %w", err)
	}

	if p.RecipientPhone != nil && *p.RecipientPhone != "" {
		sms := fmt.Sprintf("%s: parcel %s is overdue, %s %.2f due. Please collect soon.", hub, p.TrackingNumber, utils.Currency, res.TotalPrice)
		if err := s.notifier.SendSMS(ctx, *p.RecipientPhone, sms); err != nil {
			s.logger.Printf("overdue: SMS for %s failed: %v", p.TrackingNumber, err)
		}
	}
	return nil
}
