package ai

import (
	"context"
	"strings"

	"github.com/nourseensaeed7/BinWise-Recycle/internal/modules/points"
)

// MaterialDetector turns a free-text description of recyclables into candidate pickup items.
// Implementations are oracles: results are suggestions the user confirms before creating a pickup.
type MaterialDetector interface {
	Detect(ctx context.Context, description string) (*Detection, error)
}

type Candidate struct {
	Material points.Material `json:"materialType"`
	Quantity int             `json:"quantity"`
	WeightKg float64         `json:"weightKg"`
}

type Detection struct {
	Items []Candidate `json:"items"`
	// EstimatedTotalKg is the model's guess for the whole batch, 0 when unknown.
	EstimatedTotalKg float64 `json:"estimatedTotalKg"`
	Note             string  `json:"note,omitempty"`
}

// Sanitize drops unknown materials and clamps impossible values.
func (d *Detection) Sanitize() {
	kept := d.Items[:0]
	for _, c := range d.Items {
		c.Material = points.Material(strings.ToLower(strings.TrimSpace(string(c.Material))))
		if !c.Material.Known() {
			continue
		}
		if c.Quantity < 1 {
			c.Quantity = 1
		}
		if c.WeightKg < 0 {
			c.WeightKg = 0
		}
		kept = append(kept, c)
	}
	d.Items = kept
	if d.EstimatedTotalKg < 0 {
		d.EstimatedTotalKg = 0
	}
}
