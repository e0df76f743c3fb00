package entity

import "sort"

// lpaMaxIterations bounds label propagation; the graph is small enough that
// convergence is normally reached in a handful of passes.
const lpaMaxIterations = 20

// Cluster is a group of entities that keep turning up together.
type Cluster struct {
	EntityIDs []string `json:"entity_ids"`
	Names     []string `json:"names"`
	Mentions  int      `json:"mentions"`
}

// Clusters groups entities by label propagation over the co-occurrence
// graph. Singleton components are dropped; an entity with no co-occurrences
// is not a cluster. Tie-breaking is lexicographic so the result is
// deterministic for a given graph.
func (t *Tracker) Clusters() []Cluster {
	t.mu.Lock()
	defer t.mu.Unlock()

	byID := make(map[string]*record, len(t.byKey))
	ids := make([]string, 0, len(t.byKey))
	for _, rec := range t.byKey {
		byID[rec.id] = rec
		ids = append(ids, rec.id)
	}
	sort.Strings(ids)

	labels := make(map[string]string, len(ids))
	for _, id := range ids {
		labels[id] = id
	}

	for iter := 0; iter < lpaMaxIterations; iter++ {
		changed := 0
		for _, id := range ids {
			rec := byID[id]
			if len(rec.co) == 0 {
				continue
			}

			counts := make(map[string]int)
			maxCount := 0
			for neighbor := range rec.co {
				label := labels[neighbor]
				counts[label]++
				if counts[label] > maxCount {
					maxCount = counts[label]
				}
			}

			var candidates []string
			for label, count := range counts {
				if count == maxCount {
					candidates = append(candidates, label)
				}
			}
			sort.Strings(candidates)
			best := candidates[len(candidates)-1]

			if labels[id] != best {
				labels[id] = best
				changed++
			}
		}
		if changed == 0 {
			break
		}
	}

	grouped := make(map[string][]string)
	for _, id := range ids {
		grouped[labels[id]] = append(grouped[labels[id]], id)
	}

	var out []Cluster
	for _, members := range grouped {
		if len(members) < 2 {
			continue
		}
		c := Cluster{EntityIDs: members}
		for _, id := range members {
			rec := byID[id]
			c.Names = append(c.Names, rec.displayName)
			c.Mentions += rec.mentions
		}
		sort.Strings(c.Names)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Mentions != out[j].Mentions {
			return out[i].Mentions > out[j].Mentions
		}
		return out[i].Names[0] < out[j].Names[0]
	})
	return out
}
