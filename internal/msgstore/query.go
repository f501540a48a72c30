package msgstore

import "sort"

// DefaultQueryLimit matches the tool layer's historical default.
const DefaultQueryLimit = 200

// Query returns records under the resolved form of key with timestamp >=
// sinceMs and a non-empty payload, in ascending timestamp order. When more
// than limit remain, the LAST limit records are kept: recency wins over
// completeness when truncating.
//
// If the resolved key yields nothing and differs from the raw key, the raw
// key is queried instead. That covers the window where a mapping was just
// learned but migration has not run yet.
func (s *Store) Query(key string, sinceMs int64, limit int) []Record {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	resolved := s.resolver.Resolve(key)

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.queryLocked(resolved, sinceMs, limit)
	if len(out) == 0 && resolved != key {
		out = s.queryLocked(key, sinceMs, limit)
	}
	return out
}

func (s *Store) queryLocked(key string, sinceMs int64, limit int) []Record {
	conv, ok := s.convos[key]
	if !ok {
		return nil
	}

	var out []Record
	for _, rec := range conv.records {
		if rec.Timestamp >= sinceMs && rec.HasPayload() {
			out = append(out, *rec)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp < out[j].Timestamp
	})

	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}
