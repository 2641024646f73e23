package orchestrator

// buildStages partitions the candidate set into dependency stages. A
// candidate joins the earliest stage in which every dependency it names
// within the set has already run; candidates in the same stage run
// concurrently. Dependencies on agents outside the set are ignored. A
// dependency cycle degrades to running the stuck candidates one by one in
// rank order so the request still completes.
func buildStages(candidates []Candidate) [][]Candidate {
	inSet := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		inSet[c.Agent.Name()] = struct{}{}
	}

	done := make(map[string]struct{}, len(candidates))
	remaining := append([]Candidate(nil), candidates...)
	var stages [][]Candidate

	for len(remaining) > 0 {
		var stage, blocked []Candidate
		for _, c := range remaining {
			ready := true
			for _, dep := range c.Agent.DependsOn() {
				if _, relevant := inSet[dep]; !relevant {
					continue
				}
				if _, ok := done[dep]; !ok {
					ready = false
					break
				}
			}
			if ready {
				stage = append(stage, c)
			} else {
				blocked = append(blocked, c)
			}
		}
		if len(stage) == 0 {
			// Cycle among the blocked candidates.
			stage = []Candidate{blocked[0]}
			blocked = blocked[1:]
		}
		for _, c := range stage {
			done[c.Agent.Name()] = struct{}{}
		}
		stages = append(stages, stage)
		remaining = blocked
	}
	return stages
}
