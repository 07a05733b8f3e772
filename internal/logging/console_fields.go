package logging

import (
	"log/slog"
	"strings"

	"github.com/dustin/go-humanize"
)

type infoField struct {
	label string
	value string
}

// infoHighlightKeys are shown first, in this order, on info-level records.
var infoHighlightKeys = []string{
	FieldAlert,
	FieldEventType,
	FieldTriggerSource,
	FieldRunningTime,
	FieldSpliceTime,
	"duration",
	FieldPairedEventID,
	"reason",
	"error",
	FieldErrorKind,
	FieldErrorHint,
	FieldImpact,
	"target_address",
	FieldPID,
}

func selectInfoFields(attrs []kv) []infoField {
	if len(attrs) == 0 {
		return nil
	}
	used := make([]bool, len(attrs))
	result := make([]infoField, 0, len(attrs))
	for _, key := range infoHighlightKeys {
		for i, attr := range attrs {
			if used[i] || attr.key != key {
				continue
			}
			used[i] = true
			result = append(result, infoField{label: displayLabel(key), value: formatValueForKey(key, attr.value)})
		}
	}
	for i, attr := range attrs {
		if used[i] || skipInfoKey(attr.key) {
			continue
		}
		value := formatValueForKey(attr.key, attr.value)
		if len(value) > 160 {
			continue
		}
		result = append(result, infoField{label: displayLabel(attr.key), value: value})
	}
	return result
}

func formatValueForKey(key string, v slog.Value) string {
	v = v.Resolve()
	if strings.HasSuffix(key, "bytes") {
		switch v.Kind() {
		case slog.KindInt64:
			if v.Int64() >= 0 {
				return humanize.IBytes(uint64(v.Int64()))
			}
		case slog.KindUint64:
			return humanize.IBytes(v.Uint64())
		}
	}
	if runningTimeKeys[key] && v.Kind() == slog.KindDuration {
		return formatRunningTime(v.Duration())
	}
	if v.Kind() == slog.KindBool {
		if v.Bool() {
			return "yes"
		}
		return "no"
	}
	value := quotedValue(v)
	if key == "error" && len(value) > 200 {
		value = value[:200] + "…"
	}
	return value
}

// skipInfoKey hides identifiers already rendered in the header and
// correlation noise that only matters when debugging.
func skipInfoKey(key string) bool {
	switch key {
	case "", FieldComponent, FieldEventID, FieldSpliceKind, FieldRunID, FieldCorrelationID:
		return true
	}
	return strings.HasSuffix(key, "_path")
}

func displayLabel(key string) string {
	switch key {
	case FieldAlert:
		return "Alert"
	case FieldEventType:
		return "Event"
	case FieldTriggerSource:
		return "Trigger"
	case FieldErrorKind:
		return "Error Kind"
	case FieldErrorHint:
		return "Hint"
	case FieldRunningTime:
		return "Running Time"
	case FieldSpliceTime:
		return "Splice Time"
	case FieldPairedEventID:
		return "Paired Event"
	case FieldPID:
		return "PID"
	default:
		return titleizeKey(key)
	}
}

func titleizeKey(key string) string {
	parts := strings.FieldsFunc(key, func(r rune) bool {
		return r == '_' || r == '-' || r == '.'
	})
	for i, part := range parts {
		lower := strings.ToLower(part)
		parts[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(parts, " ")
}
