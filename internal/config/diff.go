package config

import (
	"sort"

	logx "nowplaying/pkg/logx"
)

// SummarizeChange returns (1) the sorted keys that differ between two loads
// and (2) structured attrs for logging the new values of those keys.
//
// Lyrics are compared too, even though a running broadcaster keeps its
// original sequence; operators get told their edit will not take effect.
func SummarizeChange(oldCfg, newCfg *Settings) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Settings{}
	}
	if newCfg == nil {
		newCfg = &Settings{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 8)

	if oldCfg.PrefixText() != newCfg.PrefixText() {
		changed = append(changed, "prefix")
		attrs = append(attrs, logx.String("prefix", newCfg.PrefixText()))
	}
	if oldCfg.SuffixText() != newCfg.SuffixText() {
		changed = append(changed, "suffix")
		attrs = append(attrs, logx.String("suffix", newCfg.SuffixText()))
	}
	if oldCfg.IntervalSeconds != newCfg.IntervalSeconds {
		changed = append(changed, "interval")
		attrs = append(attrs, logx.Duration("interval", newCfg.Interval()))
	}
	if oldCfg.Reload != newCfg.Reload {
		changed = append(changed, "reload")
		attrs = append(attrs, logx.Bool("reload", newCfg.Reload))
	}
	if !equalStrings(oldCfg.Lyrics, newCfg.Lyrics) {
		changed = append(changed, "lyrics")
		attrs = append(attrs, logx.Int("lyrics.count", len(newCfg.Lyrics)))
	}
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
