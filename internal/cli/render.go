package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/pscheid92/hearth/internal/domain"
)

var (
	okColor    = color.New(color.FgHiGreen)
	warnColor  = color.New(color.FgYellow)
	errColor   = color.New(color.FgRed)
	labelColor = color.New(color.Faint)
)

func bandColor(band domain.Band) *color.Color {
	switch band {
	case domain.BandExtinguished:
		return color.New(color.FgHiBlack)
	case domain.BandLow:
		return color.New(color.FgBlue)
	case domain.BandMedium:
		return color.New(color.FgYellow)
	case domain.BandHigh:
		return color.New(color.FgHiRed)
	default:
		return color.New(color.FgRed, color.Bold)
	}
}

func bandName(view domain.StatusView) string {
	if view.BandLabel != "" {
		return view.BandLabel
	}
	return view.Band.String()
}

func renderStatus(w io.Writer, view domain.StatusView, now time.Time) {
	fmt.Fprintf(w, "%s Hearth: %s\n", view.Emoji,
		bandColor(view.Band).Sprintf("%.1f%% (%s)", view.Intensity, bandName(view)))
	fmt.Fprintf(w, "   %s %.2fx\n", labelColor.Sprint("Multiplier:"), view.Multiplier)

	active := fmt.Sprintf("%d", view.ActiveContributionCount)
	if !view.NextExpiryAt.IsZero() {
		active += fmt.Sprintf(" (next expires in %s)", humanize(view.NextExpiryAt.Sub(now)))
	}
	fmt.Fprintf(w, "   %s %s\n", labelColor.Sprint("Active contributions:"), active)

	if view.Protection.Active {
		fmt.Fprintf(w, "   %s %s\n", labelColor.Sprint("Protection:"),
			okColor.Sprintf("active for %s (by %s)", humanize(view.Protection.Remaining), view.Protection.ActivatedBy))
	} else {
		fmt.Fprintf(w, "   %s %s (%s)\n", labelColor.Sprint("Next decay:"),
			view.NextDecayAt.Local().Format("15:04"), humanize(view.NextDecayAt.Sub(now)))
	}

	fmt.Fprintf(w, "   %s %d today, %d lifetime\n", labelColor.Sprint("Contributions:"), view.DailyCount, view.LifetimeCount)
	if last := view.LastContribution; last != nil {
		fmt.Fprintf(w, "   %s %s, %s ago\n", labelColor.Sprint("Last:"), last.Label, humanize(now.Sub(last.AddedAt)))
	}
}

func renderResult(w io.Writer, result domain.Result) {
	if result.OK {
		fmt.Fprintln(w, okColor.Sprint("✓ ")+result.Message)
		return
	}

	c := warnColor
	if result.Reason == domain.ReasonUnavailable {
		c = errColor
	}
	fmt.Fprintf(w, "%s %s %s\n", c.Sprint("✗"), result.Message, labelColor.Sprintf("[%s]", result.Reason))
}

// humanize renders a duration as "2h 15m", "45m" or "30s".
func humanize(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	switch {
	case d >= time.Hour:
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m == 0 {
			return fmt.Sprintf("%dh", h)
		}
		return fmt.Sprintf("%dh %dm", h, m)
	case d >= time.Minute:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
}
