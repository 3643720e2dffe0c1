package jobs

import "testing"

func TestDefault8BuildsExpectedDAG(t *testing.T) {
	jobList := Default8(Deps{})

	byName := make(map[string]struct {
		dependsOn   []string
		maxAttempts int
	}, len(jobList))
	for _, j := range jobList {
		byName[j.Name] = struct {
			dependsOn   []string
			maxAttempts int
		}{j.DependsOn, j.MaxAttempts}
		if j.Run == nil {
			t.Fatalf("job %s has a nil Run closure", j.Name)
		}
	}

	if len(jobList) != 8 {
		t.Fatalf("expected 8 jobs, got %d", len(jobList))
	}

	want := map[string][]string{
		"mps":                nil,
		"votes":              {"mps"},
		"bills":              nil,
		"hansards":           nil,
		"committees":         nil,
		"committee_evidence": {"committees"},
		"summaries":          {"hansards"},
		"rag_ingest":         {"mps", "votes", "bills", "hansards", "committees", "committee_evidence", "summaries"},
	}
	for name, deps := range want {
		got, ok := byName[name]
		if !ok {
			t.Fatalf("expected job %q to exist", name)
		}
		if len(got.dependsOn) != len(deps) {
			t.Fatalf("job %q: expected %d dependencies, got %d (%v)", name, len(deps), len(got.dependsOn), got.dependsOn)
		}
		for i, dep := range deps {
			if got.dependsOn[i] != dep {
				t.Fatalf("job %q dependency %d: want %q, got %q", name, i, dep, got.dependsOn[i])
			}
		}
	}
}

func TestDefault8MaxAttemptsPositive(t *testing.T) {
	for _, j := range Default8(Deps{}) {
		if j.MaxAttempts < 1 {
			t.Fatalf("job %s has non-positive MaxAttempts %d", j.Name, j.MaxAttempts)
		}
	}
}
