package signal

import (
	"strings"
)

// Well-known structured detail keys.
const (
	DetailCounterparty = "counterparty"
	DetailAcquirer     = "acquirer"
	DetailFiler        = "filer"
	DetailPastClient   = "past_client"
	DetailSourceURL    = "source_url"
)

// Detail is the open key/value payload attached to a signal.
type Detail map[string]any

// String returns the trimmed string stored at key, or "".
func (d Detail) String(key string) string {
	if d == nil {
		return ""
	}
	value, ok := d[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}

func (d Detail) Counterparty() string { return d.String(DetailCounterparty) }

// Acquirer returns the recorded acquirer, falling back to the filer.
func (d Detail) Acquirer() string {
	if acquirer := d.String(DetailAcquirer); acquirer != "" {
		return acquirer
	}
	return d.String(DetailFiler)
}

// NonEmptyFields counts keys whose value carries information.
func (d Detail) NonEmptyFields() int {
	count := 0
	for _, value := range d {
		if !isEmptyValue(value) {
			count++
		}
	}
	return count
}

// Clone returns a shallow copy safe to extend.
func (d Detail) Clone() Detail {
	out := make(Detail, len(d)+1)
	for key, value := range d {
		out[key] = value
	}
	return out
}

func isEmptyValue(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	case Detail:
		return len(v) == 0
	default:
		return false
	}
}
