package notifier

import (
	"fmt"
	"strings"

	"FinBoard/internal/model"
)

// FormatTrigger formats a trigger event into a Telegram message.
func FormatTrigger(a model.Alert, ev model.TriggerEvent) string {
	var b strings.Builder
	b.WriteString("🔔 <b>Alert triggered</b>\n\n")
	if a.Name != "" {
		b.WriteString(fmt.Sprintf("%s\n", a.Name))
	}
	b.WriteString(fmt.Sprintf("%s (%s)\n", a.Symbol, a.InstrumentID))
	b.WriteString(fmt.Sprintf("条件: <code>%s</code>\n", a.Condition))
	b.WriteString(fmt.Sprintf("价格: %.6g\n", ev.PriceAtTrigger))
	b.WriteString(fmt.Sprintf("时间: %s\n", ev.EvaluatedAt.Format("2006-01-02 15:04:05")))
	b.WriteString("\n再次触发前需等待价格回落后重新跨越阈值")
	return b.String()
}

// FormatPrice formats a resolved price for a /price command reply.
func FormatPrice(p model.ResolvedPrice) string {
	return fmt.Sprintf("💹 <b>%s</b>: %.6g\n来源: %s | %s",
		p.InstrumentID, p.Value, p.Source, p.ResolvedAt.Format("2006-01-02 15:04:05"))
}

// FormatAlertList formats the alert list for a /alerts command reply.
func FormatAlertList(alerts []model.Alert) string {
	if len(alerts) == 0 {
		return "暂无告警"
	}
	var b strings.Builder
	b.WriteString("📋 <b>告警列表</b>\n\n")
	for _, a := range alerts {
		status := "⏸"
		if a.Enabled {
			status = "▶️"
			if !a.Armed {
				status = "🔕"
			}
		}
		b.WriteString(fmt.Sprintf("%s #%d %s <code>%s</code>\n", status, a.ID, a.InstrumentID, a.Condition))
	}
	return b.String()
}

// FormatTriggerList formats recent trigger history for a /triggers reply.
func FormatTriggerList(events []model.TriggerEvent) string {
	if len(events) == 0 {
		return "暂无触发记录"
	}
	var b strings.Builder
	b.WriteString("🕘 <b>最近触发</b>\n\n")
	for _, ev := range events {
		b.WriteString(fmt.Sprintf("告警 #%d @ %.6g | %s\n",
			ev.AlertID, ev.PriceAtTrigger, ev.EvaluatedAt.Format("01-02 15:04")))
	}
	return b.String()
}
