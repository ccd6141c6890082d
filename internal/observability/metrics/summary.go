package metrics

import (
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// BookingOutcome is one operation/reason pair and how often it happened.
type BookingOutcome struct {
	Operation string  `json:"operation"`
	Reason    string  `json:"reason"`
	Count     float64 `json:"count"`
}

// Summary is the admin view over the concierge counters.
type Summary struct {
	ActiveSessions float64            `json:"activeSessions"`
	Bookings       []BookingOutcome   `json:"bookings"`
	Extractions    map[string]float64 `json:"extractions"`
}

// Summarize reads the concierge metric families from gatherer.
func Summarize(gatherer prometheus.Gatherer) (Summary, error) {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mfs, err := gatherer.Gather()
	if err != nil {
		return Summary{}, err
	}

	out := Summary{Extractions: map[string]float64{}}
	for _, mf := range mfs {
		if mf == nil {
			continue
		}
		switch mf.GetName() {
		case namespace + "_conversation_active_sessions":
			for _, metric := range mf.Metric {
				if g := metric.GetGauge(); g != nil {
					out.ActiveSessions = g.GetValue()
				}
			}
		case namespace + "_bookings_operations_total":
			for _, metric := range mf.Metric {
				out.Bookings = append(out.Bookings, BookingOutcome{
					Operation: labelValue(metric, "operation"),
					Reason:    labelValue(metric, "reason"),
					Count:     metric.GetCounter().GetValue(),
				})
			}
		case namespace + "_conversation_extractions_total":
			for _, metric := range mf.Metric {
				out.Extractions[labelValue(metric, "outcome")] += metric.GetCounter().GetValue()
			}
		}
	}

	sort.Slice(out.Bookings, func(i, j int) bool {
		if out.Bookings[i].Operation != out.Bookings[j].Operation {
			return out.Bookings[i].Operation < out.Bookings[j].Operation
		}
		return out.Bookings[i].Reason < out.Bookings[j].Reason
	})
	return out, nil
}

func labelValue(metric *dto.Metric, name string) string {
	for _, lp := range metric.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
