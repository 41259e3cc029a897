package scheduler

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"FinBoard/internal/engine"
	"FinBoard/internal/model"
	"FinBoard/internal/notifier"
	"FinBoard/internal/resolver"
	"FinBoard/internal/store"
)

// Scheduler drives the periodic alert evaluation sweep.
type Scheduler struct {
	Cron     *cron.Cron
	Engine   *engine.Engine
	Store    store.Store
	Resolver *resolver.Resolver
	Notifier notifier.Notifier
	Ctx      context.Context
}

// NewScheduler creates a Scheduler.
func NewScheduler(ctx context.Context, eng *engine.Engine, st store.Store, res *resolver.Resolver, n notifier.Notifier) *Scheduler {
	if n == nil {
		n = notifier.Noop{}
	}
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Engine:   eng,
		Store:    st,
		Resolver: res,
		Notifier: n,
		Ctx:      ctx,
	}
}

// Register registers the evaluation sweep on the given cron expression.
func (s *Scheduler) Register(cycleCron string) error {
	if _, err := s.Cron.AddFunc(cycleCron, s.cycleTask); err != nil {
		return fmt.Errorf("register cycle task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.Cron.Stop()
	log.Println("[INFO] scheduler stopped")
}

// RunCycleNow executes the evaluation sweep immediately (manual trigger /
// RUN_ON_START).
func (s *Scheduler) RunCycleNow() {
	s.cycleTask()
}

func (s *Scheduler) cycleTask() {
	alerts, err := s.Store.EnabledAlerts()
	if err != nil {
		log.Printf("[ERROR] cycle: load enabled alerts: %v", err)
		return
	}
	if len(alerts) == 0 {
		return
	}

	// Bound the whole sweep so one stuck cycle never overlaps the next few.
	ctx, cancel := context.WithTimeout(s.Ctx, 2*time.Minute)
	defer cancel()

	events, results := s.Engine.RunCycle(ctx, alerts)

	counts := make(map[engine.Outcome]int)
	for _, r := range results {
		counts[r.Outcome]++
	}
	log.Printf("[INFO] cycle complete: %d alert(s), %d triggered, %d suppressed, %d no_price, %d bad_condition",
		len(results), counts[engine.OutcomeTriggered], counts[engine.OutcomeSuppressed],
		counts[engine.OutcomeSkippedNoPrice], counts[engine.OutcomeSkippedBadCondition])

	if len(events) == 0 {
		return
	}

	byID := make(map[int64]model.Alert, len(alerts))
	for _, a := range alerts {
		byID[a.ID] = a
	}
	for _, ev := range events {
		a, ok := byID[ev.AlertID]
		if !ok {
			continue
		}
		// Fire-and-forget: delivery must never block the cycle.
		go s.trySend(notifier.FormatTrigger(a, ev))
	}
}

// HandleCommand processes a Telegram command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	cmd, arg, _ := strings.Cut(command, " ")
	switch cmd {
	case "/price":
		arg = strings.TrimSpace(arg)
		if arg == "" {
			return "用法: /price <symbol>"
		}
		p, err := s.Resolver.Resolve(s.Ctx, arg)
		if err != nil {
			return fmt.Sprintf("❌ 无法获取 %s 的价格", arg)
		}
		return notifier.FormatPrice(p)
	case "/alerts":
		alerts, err := s.Store.Alerts()
		if err != nil {
			return fmt.Sprintf("❌ 读取告警失败: %v", err)
		}
		return notifier.FormatAlertList(alerts)
	case "/triggers":
		events, err := s.Store.RecentTriggers(10)
		if err != nil {
			return fmt.Sprintf("❌ 读取触发记录失败: %v", err)
		}
		return notifier.FormatTriggerList(events)
	case "/cycle":
		go s.RunCycleNow()
		return "已触发一次评估"
	default:
		return "可用命令:\n• /price <symbol>\n• /alerts\n• /triggers\n• /cycle"
	}
}

func (s *Scheduler) trySend(text string) {
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}
