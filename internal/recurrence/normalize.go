package recurrence

import (
	"strings"

	"github.com/teambition/rrule-go"
)

// canonical key order after FREQ
var keyOrder = []string{
	"DTSTART", "INTERVAL", "COUNT", "UNTIL", "WKST",
	"BYSETPOS", "BYMONTH", "BYMONTHDAY", "BYYEARDAY", "BYWEEKNO",
	"BYDAY", "BYHOUR", "BYMINUTE", "BYSECOND",
}

var keyAliases = map[string]string{
	"FREQUENCY": "FREQ",
	"DAYS":      "BYDAY",
	"BYWEEKDAY": "BYDAY",
	"WEEKDAYS":  "BYDAY",
	"MONTHDAY":  "BYMONTHDAY",
	"MONTH":     "BYMONTH",
	"ENDS":      "UNTIL",
	"REPEAT":    "COUNT",
}

var freqAliases = map[string]string{
	"YEARLY":   "YEARLY",
	"ANNUALLY": "YEARLY",
	"MONTHLY":  "MONTHLY",
	"WEEKLY":   "WEEKLY",
	"DAILY":    "DAILY",
	"HOURLY":   "HOURLY",
	"MINUTELY": "MINUTELY",
	"SECONDLY": "SECONDLY",
}

// Normalize rewrites a stored rule into the canonical FREQ=...;... form.
// It returns ok=false for empty or unparseable input and never panics.
// Normalizing a canonical rule returns it unchanged.
func Normalize(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	fields := map[string]string{}
	for _, line := range splitLines(raw) {
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "DTSTART"):
			// DTSTART:20240101T000000Z or DTSTART;TZID=UTC:20240101T000000Z,
			// possibly followed by ;FREQ=... on the same line. The DTSTART=...
			// form is an ordinary part and goes through parseParts.
			i := strings.LastIndex(line, ":")
			if i < 0 {
				break
			}
			value, rest, _ := strings.Cut(line[i+1:], ";")
			fields["DTSTART"] = strings.ToUpper(strings.TrimSpace(value))
			if strings.TrimSpace(rest) == "" {
				continue
			}
			line = rest
		case strings.HasPrefix(upper, "EXDATE"), strings.HasPrefix(upper, "RDATE"), strings.HasPrefix(upper, "EXRULE"):
			continue
		case strings.HasPrefix(upper, "RRULE:"):
			line = line[len("RRULE:"):]
		}
		if !parseParts(line, fields) {
			return "", false
		}
	}

	freq, ok := freqAliases[fields["FREQ"]]
	if !ok {
		return "", false
	}
	fields["FREQ"] = freq

	parts := []string{"FREQ=" + freq}
	for _, key := range keyOrder {
		if v, ok := fields[key]; ok {
			parts = append(parts, key+"="+v)
		}
	}
	canonical := strings.Join(parts, ";")

	if _, err := rrule.StrToROption(canonical); err != nil {
		return "", false
	}
	return canonical, true
}

func splitLines(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	var out []string
	for _, l := range strings.Split(raw, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func parseParts(line string, fields map[string]string) bool {
	for _, part := range strings.Split(line, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return false
		}
		key := strings.ToUpper(strings.TrimSpace(kv[0]))
		if alias, ok := keyAliases[key]; ok {
			key = alias
		}
		if key != "FREQ" && !knownKey(key) {
			return false
		}
		val := strings.ToUpper(strings.ReplaceAll(kv[1], " ", ""))
		val = strings.Trim(val, ",")
		if val == "" {
			return false
		}
		fields[key] = val
	}
	return true
}

func knownKey(key string) bool {
	for _, k := range keyOrder {
		if k == key {
			return true
		}
	}
	return false
}
