package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Candidates is a mutable working set of candidate profiles flowing
// through a matching round.
type Candidates struct {
	Items []*Candidate
}

func (c *Candidates) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Items)
}

// FindByID returns the candidate with the given id, or nil.
func (c *Candidates) FindByID(id string) *Candidate {
	for _, item := range c.Items {
		if item.ID == id {
			return item
		}
	}
	return nil
}

// IDs returns the ids of all candidates in the set, in order.
func (c *Candidates) IDs() []string {
	ids := make([]string, 0, c.Len())
	for _, item := range c.Items {
		ids = append(ids, item.ID)
	}
	return ids
}

// Keep retains only candidates whose ids appear in keep, preserving the
// order of keep. It returns the ids that were dropped.
func (c *Candidates) Keep(keep []string) []string {
	byID := make(map[string]*Candidate, len(c.Items))
	for _, item := range c.Items {
		byID[item.ID] = item
	}

	kept := make([]*Candidate, 0, len(keep))
	seen := make(map[string]bool, len(keep))
	for _, id := range keep {
		if item, ok := byID[id]; ok && !seen[id] {
			kept = append(kept, item)
			seen[id] = true
		}
	}

	dropped := make([]string, 0)
	for _, item := range c.Items {
		if !seen[item.ID] {
			dropped = append(dropped, item.ID)
		}
	}

	c.Items = kept
	return dropped
}

// DropUnscreened removes candidates that have not completed intake,
// returning the dropped ids.
func (c *Candidates) DropUnscreened() []string {
	kept := make([]*Candidate, 0, len(c.Items))
	dropped := make([]string, 0)
	for _, item := range c.Items {
		if item.Screened {
			kept = append(kept, item)
			continue
		}
		dropped = append(dropped, item.ID)
	}

	c.Items = kept
	return dropped
}

// DumpToTmpFile writes the set as indented JSON to a temporary file and
// returns its name.
func (c *Candidates) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "hiregate-candidates-*.json")
	if err != nil {
		return "", fmt.Errorf("create tmp file: %w", err)
	}
	defer file.Close()

	data, err := json.MarshalIndent(c.Items, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal candidates: %w", err)
	}

	if _, err := file.Write(data); err != nil {
		return "", fmt.Errorf("write candidates: %w", err)
	}

	return file.Name(), nil
}

// DumpMatchesToTmpFile writes the matches as indented JSON to a temporary
// file and returns its name. Matches are sorted by descending overall
// score so the file reads like a ranking.
func DumpMatchesToTmpFile(matches []*Match) (string, error) {
	sorted := make([]*Match, len(matches))
	copy(sorted, matches)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Scores.Overall != sorted[j].Scores.Overall {
			return sorted[i].Scores.Overall > sorted[j].Scores.Overall
		}
		return sorted[i].CandidateID < sorted[j].CandidateID
	})

	file, err := os.CreateTemp("", "hiregate-matches-*.json")
	if err != nil {
		return "", fmt.Errorf("create tmp file: %w", err)
	}
	defer file.Close()

	data, err := json.MarshalIndent(sorted, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal matches: %w", err)
	}

	if _, err := file.Write(data); err != nil {
		return "", fmt.Errorf("write matches: %w", err)
	}

	return file.Name(), nil
}
