package eval

// RetrievalMetrics are rank-based quality measures of one retrieval,
// computed against the sample's relevant passage ids.
type RetrievalMetrics struct {
	RecallAtK    float64 `json:"recall@k"`
	PrecisionAtK float64 `json:"precision@k"`
	MRR          float64 `json:"mrr"`
}

// ComputeRetrievalMetrics scores the first k retrieved ids against the
// relevant set. k <= 0 means "all retrieved ids".
func ComputeRetrievalMetrics(retrievedIDs, relevantIDs []string, k int) RetrievalMetrics {
	if k <= 0 || k > len(retrievedIDs) {
		k = len(retrievedIDs)
	}
	topK := retrievedIDs[:k]

	relevant := make(map[string]struct{}, len(relevantIDs))
	for _, id := range relevantIDs {
		relevant[id] = struct{}{}
	}

	var m RetrievalMetrics
	if len(relevant) == 0 || k == 0 {
		return m
	}

	found := 0
	for _, id := range topK {
		if _, ok := relevant[id]; ok {
			found++
		}
	}
	m.RecallAtK = float64(found) / float64(len(relevant))
	m.PrecisionAtK = float64(found) / float64(k)

	for rank, id := range topK {
		if _, ok := relevant[id]; ok {
			m.MRR = 1.0 / float64(rank+1)
			break
		}
	}
	return m
}
