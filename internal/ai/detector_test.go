package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nourseensaeed7/BinWise-Recycle/internal/modules/points"
)

func TestParseDetection(t *testing.T) {
	raw := "```json\n" + `{"items":[
		{"materialType":"Plastic","quantity":3,"weightKg":0.4},
		{"materialType":"styrofoam","quantity":1,"weightKg":0.1},
		{"materialType":"e-waste","quantity":0,"weightKg":-2}
	],"estimatedTotalKg":1.5,"note":"bottles and a charger"}` + "\n```"

	d, err := parseDetection(raw)
	require.NoError(t, err)
	require.Len(t, d.Items, 2)
	assert.Equal(t, points.Plastic, d.Items[0].Material)
	assert.Equal(t, 3, d.Items[0].Quantity)
	assert.Equal(t, points.EWaste, d.Items[1].Material)
	assert.Equal(t, 1, d.Items[1].Quantity)
	assert.Zero(t, d.Items[1].WeightKg)
	assert.Equal(t, 1.5, d.EstimatedTotalKg)
}

func TestParseDetectionRejectsGarbage(t *testing.T) {
	_, err := parseDetection("I think those are bottles")
	assert.Error(t, err)
}

func TestSystemPromptListsEveryMaterial(t *testing.T) {
	prompt := systemPrompt()
	for _, m := range points.Materials() {
		assert.Contains(t, prompt, string(m))
	}
}
