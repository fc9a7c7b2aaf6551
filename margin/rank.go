package margin

import "sort"

// RankAlerts orders alerts by severity (high, medium, low, then anything
// unrecognized) and, within a severity, by amount descending. Equal keys keep
// their input order. The input slice is not modified.
func RankAlerts(alerts []RiskAlert) []RiskAlert {
	out := make([]RiskAlert, len(alerts))
	copy(out, alerts)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].Severity.rank(), out[j].Severity.rank()
		if ri != rj {
			return ri < rj
		}
		return out[i].Amount.GreaterThan(out[j].Amount)
	})
	return out
}
