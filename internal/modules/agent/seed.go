package agent

import (
	"fmt"
	"strings"

	"github.com/nourseensaeed7/BinWise-Recycle/internal/types"
)

// ParseSeed reads "id|name|email" entries into active agents.
func ParseSeed(entries []string) ([]Agent, error) {
	out := make([]Agent, 0, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e) == "" {
			continue
		}
		parts := strings.Split(e, "|")
		if len(parts) != 3 {
			return nil, fmt.Errorf("agent seed %q: want id|name|email", e)
		}
		a := Agent{
			ID:     types.ID(strings.TrimSpace(parts[0])),
			Name:   strings.TrimSpace(parts[1]),
			Email:  strings.TrimSpace(parts[2]),
			Active: true,
		}
		if a.ID == "" || a.Name == "" {
			return nil, fmt.Errorf("agent seed %q: id and name are required", e)
		}
		out = append(out, a)
	}
	return out, nil
}
