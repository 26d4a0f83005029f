package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/prometheus/common/model"
)

// Summary is the injection activity scraped from a daemon's /metrics.
type Summary struct {
	State string
	// Frames is keyed by "transport/result", Tasks by "kind/outcome".
	Frames map[string]float64
	Tasks  map[string]float64
}

// ParseSummary reads the Prometheus text exposition format and extracts
// the hidject series. Other families are ignored.
func ParseSummary(r io.Reader) (Summary, error) {
	parser := expfmt.NewTextParser(model.UTF8Validation)
	families, err := parser.TextToMetricFamilies(r)
	if err != nil {
		return Summary{}, fmt.Errorf("metrics: parse exposition: %w", err)
	}

	s := Summary{Frames: map[string]float64{}, Tasks: map[string]float64{}}
	if mf, ok := families["hidject_state"]; ok {
		for _, m := range mf.GetMetric() {
			if m.GetGauge().GetValue() == 1 {
				s.State = label(m, "state")
			}
		}
	}
	if mf, ok := families["hidject_frames_total"]; ok {
		for _, m := range mf.GetMetric() {
			s.Frames[label(m, "transport")+"/"+label(m, "result")] = m.GetCounter().GetValue()
		}
	}
	if mf, ok := families["hidject_tasks_total"]; ok {
		for _, m := range mf.GetMetric() {
			s.Tasks[label(m, "kind")+"/"+label(m, "outcome")] = m.GetCounter().GetValue()
		}
	}
	return s, nil
}

func label(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

// String renders the summary one series per line, sorted.
func (s Summary) String() string {
	var b strings.Builder
	state := s.State
	if state == "" {
		state = "unknown"
	}
	fmt.Fprintf(&b, "state: %s\n", state)
	writeSorted(&b, "frames", s.Frames)
	writeSorted(&b, "tasks", s.Tasks)
	return b.String()
}

func writeSorted(b *strings.Builder, name string, values map[string]float64) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, "%s %-24s %g\n", name, k, values[k])
	}
}
