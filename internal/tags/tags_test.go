package tags

import "testing"

func TestEligible(t *testing.T) {
	cases := []struct {
		name     string
		nodeTags []string
		jobTags  []string
		want     bool
	}{
		{"untagged job runs anywhere", []string{"gpu"}, nil, true},
		{"untagged job runs on untagged node", nil, nil, true},
		{"subset matches", []string{"gpu", "cpu"}, []string{"gpu"}, true},
		{"exact match", []string{"gpu"}, []string{"gpu"}, true},
		{"missing capability", []string{"cpu"}, []string{"gpu"}, false},
		{"partial overlap is not eligible", []string{"gpu"}, []string{"gpu", "cpu"}, false},
		{"job tags but node has none", nil, []string{"gpu"}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Eligible(c.nodeTags, c.jobTags)
			if got != c.want {
				t.Fatalf("Eligible(%v, %v): want=%v got=%v", c.nodeTags, c.jobTags, c.want, got)
			}
		})
	}
}
