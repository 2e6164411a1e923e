package data

import (
	"testing"

	"github.com/mchmarny/leadpulse/pkg/lead"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLeads() []*lead.Lead {
	return []*lead.Lead{
		{ID: "L1", Platform: "Google", Status: lead.StatusWon, TreatmentType: "Implant",
			SpendPerLead: 10, QualityScore: 3, ScrollDepthPct: 90, SessionDurationSec: 300, XRaySubmitted: true},
		{ID: "L2", Platform: "Google", Status: lead.StatusLost, LossReason: "Price", TreatmentType: "Implant",
			SpendPerLead: 20, QualityScore: 1, ScrollDepthPct: 10, SessionDurationSec: 30, Churn: true},
		{ID: "L3", Platform: "Meta", Status: lead.StatusLost, LossReason: "Price", TreatmentType: "Veneers",
			SpendPerLead: 15, QualityScore: 2, ScrollDepthPct: 40, SessionDurationSec: 100, Churn: true},
		{ID: "L4", Platform: "Meta", Status: lead.StatusNurturing, TreatmentType: "Veneers",
			SpendPerLead: 25, QualityScore: 2, ScrollDepthPct: 70, SessionDurationSec: 200, XRaySubmitted: true},
		{ID: "L5", Platform: "TikTok", Status: lead.StatusNoResponse, TreatmentType: "Crown",
			SpendPerLead: 30, QualityScore: 1, ScrollDepthPct: 5, SessionDurationSec: 10, Churn: true},
		{ID: "L6", Platform: "TikTok", Status: lead.StatusLost, LossReason: "Trust", TreatmentType: "Crown",
			SpendPerLead: 20, QualityScore: 1, ScrollDepthPct: 20, SessionDurationSec: 50, Churn: true},
	}
}

func TestSaveLeads_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	in := testLeads()

	n, err := SaveLeads(db, "master.csv", in)
	require.NoError(t, err)
	assert.Equal(t, len(in), n)

	out, err := GetLeads(db)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestSaveLeads_ReplacesSnapshot(t *testing.T) {
	db := setupTestDB(t)
	in := testLeads()

	_, err := SaveLeads(db, "first.csv", in)
	require.NoError(t, err)
	_, err = SaveLeads(db, "second.csv", in[:2])
	require.NoError(t, err)

	out, err := GetLeads(db)
	require.NoError(t, err)
	assert.Len(t, out, 2)

	info, err := GetLastImport(db)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "second.csv", info.Source)
	assert.Equal(t, 2, info.Rows)
	assert.NotEmpty(t, info.ImportedAt)
}

func TestSaveLeads_NilLeadRollsBack(t *testing.T) {
	db := setupTestDB(t)
	_, err := SaveLeads(db, "first.csv", testLeads())
	require.NoError(t, err)

	_, err = SaveLeads(db, "bad.csv", []*lead.Lead{testLeads()[0], nil})
	assert.Error(t, err)

	out, err := GetLeads(db)
	require.NoError(t, err)
	assert.Len(t, out, 6, "previous snapshot survives a failed import")
}

func TestGetLeads_ByPlatform(t *testing.T) {
	db := setupTestDB(t)
	_, err := SaveLeads(db, "master.csv", testLeads())
	require.NoError(t, err)

	out, err := GetLeads(db, "Meta", "TikTok")
	require.NoError(t, err)
	require.Len(t, out, 4)
	assert.Equal(t, "L3", out[0].ID)
	assert.Equal(t, "L6", out[3].ID)

	out, err = GetLeads(db, "Unknown")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestGetPlatforms(t *testing.T) {
	db := setupTestDB(t)

	list, err := GetPlatforms(db)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = SaveLeads(db, "master.csv", testLeads())
	require.NoError(t, err)

	list, err = GetPlatforms(db)
	require.NoError(t, err)
	assert.Equal(t, []string{"Google", "Meta", "TikTok"}, list)
}

func TestGetLastImport_Empty(t *testing.T) {
	db := setupTestDB(t)
	info, err := GetLastImport(db)
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestLeadStore_NilDB(t *testing.T) {
	_, err := SaveLeads(nil, "x", nil)
	assert.ErrorIs(t, err, errDBNotInitialized)
	_, err = GetLeads(nil)
	assert.ErrorIs(t, err, errDBNotInitialized)
	_, err = GetPlatforms(nil)
	assert.ErrorIs(t, err, errDBNotInitialized)
	_, err = GetLastImport(nil)
	assert.ErrorIs(t, err, errDBNotInitialized)
}
