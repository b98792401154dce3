package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantbots/industrymapapi/internal/models"
)

func TestValidateForestKeepsWellFormedNodes(t *testing.T) {
	payload := []taxonomyNodePayload{
		{Code: "801780", Name: "Banking", Level: 1, Status: "active"},
		{Code: "801781", Name: "State Banks", Level: 2, ParentCode: "801780", Status: "active"},
		{Code: "801783", Name: "City Banks", Level: 2, ParentCode: "801780", Status: "inactive"},
	}

	nodes := validateForest(payload)
	require.Len(t, nodes, 3)

	assert.Nil(t, nodes[0].ParentCode)
	require.NotNil(t, nodes[1].ParentCode)
	assert.Equal(t, "801780", *nodes[1].ParentCode)
	assert.Equal(t, models.IndustryStatusInactive, nodes[2].Status)
}

func TestValidateForestDropsOrphansAndBadLevels(t *testing.T) {
	payload := []taxonomyNodePayload{
		{Code: "801780", Name: "Banking", Level: 1},
		{Code: "801999", Name: "Orphan", Level: 2, ParentCode: "880000"},
		{Code: "801998", Name: "Skips a level", Level: 3, ParentCode: "801780"},
		{Code: "", Name: "No code", Level: 1},
		{Code: "801997", Name: "Bad level", Level: 0},
		{Code: "801996", Name: "Level one with parent", Level: 1, ParentCode: "801780"},
	}

	nodes := validateForest(payload)
	require.Len(t, nodes, 1)
	assert.Equal(t, "801780", nodes[0].Code)
}

func TestValidateForestDefaultsUnknownStatusToActive(t *testing.T) {
	payload := []taxonomyNodePayload{
		{Code: "801780", Name: "Banking", Level: 1, Status: "weird"},
	}

	nodes := validateForest(payload)
	require.Len(t, nodes, 1)
	assert.Equal(t, models.IndustryStatusActive, nodes[0].Status)
}

func TestRefreshRequired(t *testing.T) {
	assert.True(t, refreshRequired(""))
	assert.True(t, refreshRequired("not a timestamp"))
	assert.True(t, refreshRequired("2001-01-02 08:00:00"))

	today := time.Now().Format("2006-01-02 15:04:05")
	assert.False(t, refreshRequired(today))
}
