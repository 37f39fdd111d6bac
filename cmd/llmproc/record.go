package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/jxucoder/llmproc/internal/config"
	"github.com/jxucoder/llmproc/internal/history"
	"github.com/jxucoder/llmproc/internal/notify"
	"github.com/jxucoder/llmproc/pkg/model"
)

// record stores a finished run. Failures are logged and otherwise ignored.
func (a *app) record(cfg *config.Config, run *history.Run, outcomes []model.Outcome) {
	if !cfg.HistoryEnabled {
		return
	}
	st, err := history.Open(cfg.DatabasePath)
	if err != nil {
		a.log.Warn("history unavailable", zap.Error(err))
		return
	}
	defer st.Close()

	if err := st.Record(run, outcomes); err != nil {
		a.log.Warn("recording run failed", zap.String("run", run.ID), zap.Error(err))
		return
	}
	a.log.Debug("recorded run", zap.String("run", run.ID), zap.String("db", cfg.DatabasePath))
}

// notifiers returns the configured chat destinations.
func notifiers(cfg *config.Config) []notify.Notifier {
	var ns []notify.Notifier
	if cfg.SlackEnabled() {
		ns = append(ns, notify.NewSlack(cfg.SlackBotToken, cfg.SlackChannel, ""))
	}
	if cfg.TelegramEnabled() {
		ns = append(ns, notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID, ""))
	}
	return ns
}

// notify sends msg to every notifier. Fanout logs each failure.
func (a *app) notify(ctx context.Context, ns []notify.Notifier, msg notify.Message) {
	fan := &notify.Fanout{Notifiers: ns, Logger: a.log}
	if fan.Len() == 0 {
		return
	}
	_ = fan.Notify(ctx, msg)
}
