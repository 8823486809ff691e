// package formatter renders cards as human-readable text and JSON views.
//
// It is a read-only consumer of [models.Card]: nothing here mutates a card or touches controller state.
package formatter

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/glance/internal/models"
)

// None is printed in place of an empty slot.
const None = "<none>"

// DurationText renders d as "N min(s)" below an hour and "H hour(s) M min(s)" otherwise.
//
// Minutes are rounded up and the sign of d is ignored.
func DurationText(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	minutes := int((d + time.Minute - 1) / time.Minute)
	if minutes < 60 {
		return plural(minutes, "min", "mins")
	}

	hours, rest := minutes/60, minutes%60
	text := plural(hours, "hour", "hours")
	if rest > 0 {
		text += " " + plural(rest, "min", "mins")
	}
	return text
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}

// ParamText resolves a single format parameter against c at now.
func ParamText(c *models.Card, p models.FormatParam, now time.Time) (string, bool) {
	switch p.Args {
	case models.ParamEventStart:
		return DurationText(now.Sub(c.EventTime)), true
	case models.ParamEventEnd:
		return DurationText(now.Sub(c.EventEnd())), true
	case models.ParamText:
		return p.Text, true
	default:
		return "", false
	}
}

// Text fills a formatted text's template with its resolved parameters.
func Text(c *models.Card, t models.FormattedText, now time.Time) string {
	if len(t.Params) == 0 {
		return t.Text
	}
	args := make([]string, 0, len(t.Params))
	for _, p := range t.Params {
		v, _ := ParamText(c, p, now)
		args = append(args, v)
	}
	return Fill(t.Text, args)
}

// Fill substitutes args into a printf-style template supporting %s, positional %1$s and %%.
//
// Verbs other than s are treated like s. Missing arguments render as empty strings.
func Fill(template string, args []string) string {
	var b strings.Builder
	next := 0
	for i := 0; i < len(template); i++ {
		ch := template[i]
		if ch != '%' || i+1 >= len(template) {
			b.WriteByte(ch)
			continue
		}

		if template[i+1] == '%' {
			b.WriteByte('%')
			i++
			continue
		}

		j := i + 1
		for j < len(template) && template[j] >= '0' && template[j] <= '9' {
			j++
		}
		index := -1
		if j > i+1 && j < len(template) && template[j] == '$' {
			n, _ := strconv.Atoi(template[i+1 : j])
			index = n - 1
			j++
		} else {
			j = i + 1
		}
		if j >= len(template) || !isVerb(template[j]) {
			b.WriteByte(ch)
			continue
		}

		if index < 0 {
			index = next
			next++
		}
		if index >= 0 && index < len(args) {
			b.WriteString(args[index])
		}
		i = j
	}
	return b.String()
}

func isVerb(c byte) bool {
	return c == 's' || c == 'd' || c == 'S'
}

// Title returns the selected message's title.
func Title(c *models.Card, now time.Time) string {
	if c == nil {
		return ""
	}
	msg, _ := c.Message(now)
	if msg == nil {
		return ""
	}
	return Text(c, msg.Title, now)
}

// Subtitle returns the selected message's subtitle.
func Subtitle(c *models.Card, now time.Time) string {
	if c == nil {
		return ""
	}
	msg, _ := c.Message(now)
	if msg == nil {
		return ""
	}
	return Text(c, msg.Subtitle, now)
}

// FormattedTitle renders the compact "<duration> • <text>" title.
//
// Cards of type 3 with exactly two title params use them as duration and text in that order.
// Without a text param the result is empty. Without a duration param the during-event message reads "Now" and
// other messages return their raw title text.
func FormattedTitle(c *models.Card, now time.Time) string {
	if c == nil {
		return ""
	}
	msg, during := c.Message(now)
	if msg == nil {
		return ""
	}

	params := msg.Title.Params
	var duration, text string
	var hasDuration, hasText bool

	if c.CardType == 3 && len(params) == 2 {
		duration, hasDuration = ParamText(c, params[0], now)
		text, hasText = ParamText(c, params[1], now)
	} else {
		for _, p := range params {
			switch p.Args {
			case models.ParamEventStart, models.ParamEventEnd:
				duration, hasDuration = ParamText(c, p, now)
			case models.ParamText:
				text, hasText = p.Text, true
			}
		}
	}

	if !hasText {
		return ""
	}
	if !hasDuration {
		if !during {
			return msg.Title.Text
		}
		duration = "Now"
	}
	return duration + " • " + text
}

// Summary renders a one-line debug description of c, or [None].
func Summary(c *models.Card, now time.Time) string {
	if c == nil {
		return None
	}
	return fmt.Sprintf("title:%s subtitle:%s expires:%d published:%d",
		Title(c, now), Subtitle(c, now), millis(c.ExpiresAt), millis(c.PublishTime))
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// StateText renders a [StateView] as plain text.
func StateText(v StateView) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("User: %d\n", v.User))
	buf.WriteString(fmt.Sprintf("Enabled: %t\n", v.Enabled))
	buf.WriteString(fmt.Sprintf("Privacy mode: %t\n\n", v.PrivacyMode))

	writeCard := func(label string, c *CardView) {
		if c == nil {
			buf.WriteString(fmt.Sprintf("%s: %s\n", label, None))
			return
		}
		buf.WriteString(fmt.Sprintf("%s: %s\n", label, c.Title))
		if c.Subtitle != "" {
			buf.WriteString(fmt.Sprintf("  %s\n", c.Subtitle))
		}
		if c.ExpiresAt > 0 {
			buf.WriteString(fmt.Sprintf("  expires %s\n", time.UnixMilli(c.ExpiresAt).Format(time.RFC3339)))
		}
		if c.Action != nil {
			buf.WriteString(fmt.Sprintf("  action %s %s\n", c.Action.Kind, c.Action.Target))
		}
	}

	writeCard("Primary", v.Primary)
	writeCard("Secondary", v.Secondary)
	return buf.Bytes()
}
