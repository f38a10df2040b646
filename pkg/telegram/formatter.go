package telegram

import (
	"fmt"
	"strings"
	"time"

	"golang-trade-sentry/internal/entity"
	"golang-trade-sentry/pkg/utils"
)

// FormatEvaluationAlert renders the outbound message for one qualifying
// evaluation. It is a pure function of the evaluation and position so it can
// be tested without network access.
func FormatEvaluationAlert(eval *entity.Evaluation, pos *entity.Position) string {
	var sb strings.Builder

	var icon string
	switch eval.Recommendation {
	case entity.RecommendationStrongBuy:
		icon = "🚀"
	case entity.RecommendationBuy:
		icon = "🟢"
	case entity.RecommendationHold:
		icon = "🟡"
	default:
		icon = "🔴"
	}

	sb.WriteString(fmt.Sprintf("%s *New Position: %s*\n", icon, pos.Symbol))
	sb.WriteString(fmt.Sprintf("📌 Strategy: %s (%s)\n", pos.Strategy, pos.Direction))
	if pos.Strike != nil {
		strikeLine := fmt.Sprintf("🎯 Strike: %.2f", *pos.Strike)
		if pos.Expiry != nil {
			strikeLine += fmt.Sprintf(" | Expiry: %s", *pos.Expiry)
		}
		sb.WriteString(strikeLine + "\n")
	}
	sb.WriteString(fmt.Sprintf("💰 Open: $%.2f x %.0f\n\n", pos.OpenPrice, pos.Quantity))

	sb.WriteString(fmt.Sprintf("📊 *Consensus Score:* %d/100\n", eval.ConsensusScore))
	sb.WriteString(fmt.Sprintf("💡 *Recommendation:* %s\n\n", eval.Recommendation))

	cost, maxLoss := PositionBounds(pos)
	sb.WriteString(fmt.Sprintf("💵 Cost Basis: $%.2f\n", cost))
	sb.WriteString(fmt.Sprintf("🛡 Max Loss: $%.2f\n", maxLoss))
	if be, ok := Breakeven(pos); ok {
		sb.WriteString(fmt.Sprintf("⚖️ Breakeven: $%.2f\n", be))
	}
	sb.WriteString("\n")

	if eval.Rationale != "" {
		sb.WriteString(fmt.Sprintf("🧠 *Rationale:*\n%s\n\n", eval.Rationale))
	}
	if eval.PrimaryRisk != "" {
		sb.WriteString(fmt.Sprintf("⚠️ *Key Risk:* %s\n\n", eval.PrimaryRisk))
	}

	sb.WriteString(fmt.Sprintf("📅 _%s_\n", utils.PrettyDate(eval.CreatedAt)))

	return sb.String()
}

// PositionBounds computes the cost basis and maximum loss for a position.
// Option positions (those carrying a strike) are priced per contract of 100.
func PositionBounds(pos *entity.Position) (cost, maxLoss float64) {
	multiplier := 1.0
	if pos.Strike != nil {
		multiplier = 100.0
	}
	cost = pos.OpenPrice * pos.Quantity * multiplier
	// Long debit positions risk the full premium paid.
	maxLoss = cost
	return cost, maxLoss
}

// Breakeven returns the breakeven underlying price for option positions.
// Puts break even below the strike, everything else above it.
func Breakeven(pos *entity.Position) (float64, bool) {
	if pos.Strike == nil {
		return 0, false
	}
	strategy := strings.ToUpper(pos.Strategy)
	if strings.Contains(strategy, "PUT") || strings.HasSuffix(strategy, "P") {
		return *pos.Strike - pos.OpenPrice, true
	}
	return *pos.Strike + pos.OpenPrice, true
}

// FormatErrorAlertMessage renders an operator-facing error alert.
func FormatErrorAlertMessage(ts time.Time, errType string, errMsg string) string {
	return fmt.Sprintf(`📛 [ERROR ALERT]
%s
🔧 %s
⚠️ %s
`, utils.PrettyDate(ts), errType, errMsg)
}
