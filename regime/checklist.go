package regime

import "fmt"

// Sign is one qualitative warning on the behavior checklist.
type Sign struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Checklist is the set of warning signs the operator ticks off.
var Checklist = []Sign{
	{Key: "breakout-failure", Label: "Breakouts failing or reversing"},
	{Key: "distribution", Label: "Distribution candles in leading stocks"},
	{Key: "no-follow-through", Label: "No follow-through after an index rebound"},
	{Key: "sector-decline", Label: "Sector-wide declines"},
	{Key: "stop-streak", Label: "Personal stop-out streak"},
}

// CountChecked validates keys against Checklist and counts distinct signs.
func CountChecked(keys []string) (int, error) {
	known := make(map[string]bool, len(Checklist))
	for _, s := range Checklist {
		known[s.Key] = true
	}

	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if !known[k] {
			return 0, fmt.Errorf("unknown checklist item %q", k)
		}
		seen[k] = true
	}
	return len(seen), nil
}
