package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestItemStatusCanTransition(t *testing.T) {
	tests := []struct {
		from, to ItemStatus
		want     bool
	}{
		{ItemStatusAvailable, ItemStatusReserved, true},
		{ItemStatusAvailable, ItemStatusSold, true},
		{ItemStatusReserved, ItemStatusSold, true},
		{ItemStatusReserved, ItemStatusAvailable, true},
		{ItemStatusAvailable, ItemStatusAvailable, true},
		{ItemStatusSold, ItemStatusSold, true},
		{ItemStatusSold, ItemStatusAvailable, false},
		{ItemStatusSold, ItemStatusReserved, false},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, tt.from.CanTransition(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestItemJSONOmitsAnimalFieldsForOtherCategories(t *testing.T) {
	b, err := json.Marshal(Item{ID: "PT-1", Category: CategoryPantry, Name: "Dubia", Status: ItemStatusAvailable, VerifiedFeeder: true})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	require.NotContains(t, raw, "verified_feeder")
	require.NotContains(t, raw, "feeding_log")
}

func TestItemJSONAnimalFields(t *testing.T) {
	b, err := json.Marshal(Item{ID: "AN-1", Category: CategoryAnimals, Name: "Ball Python"})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	require.Equal(t, false, raw["verified_feeder"])
	require.Equal(t, []any{}, raw["feeding_log"])
}

func TestItemUnmarshalLegacyStatus(t *testing.T) {
	var it Item
	require.NoError(t, json.Unmarshal([]byte(`{"id":"AN-1","category":"animals","name":"Leo","status":"sold"}`), &it))
	require.Equal(t, ItemStatusSold, it.Status)

	require.NoError(t, json.Unmarshal([]byte(`{"id":"AN-2","category":"animals","name":"Leo"}`), &it))
	require.Equal(t, ItemStatusAvailable, it.Status)
}

func TestRecentFeedings(t *testing.T) {
	it := Item{FeedingLog: []FeedingEntry{
		{Date: "2026-01-01", FoodType: "mouse"},
		{Date: "2026-01-08", FoodType: "mouse"},
		{Date: "2026-01-15", FoodType: "rat pup"},
		{Date: "2026-01-22", FoodType: "rat pup"},
	}}

	recent := it.RecentFeedings(RecentFeedingsShown)
	require.Len(t, recent, 3)
	require.Equal(t, "2026-01-08", recent[0].Date)
	require.Equal(t, "2026-01-22", recent[2].Date)
	require.Len(t, it.FeedingLog, 4)
	require.Nil(t, Item{}.RecentFeedings(3))
}

func TestCloneDoesNotShareFeedingLog(t *testing.T) {
	it := Item{FeedingLog: []FeedingEntry{{Date: "2026-01-01", FoodType: "mouse"}}}
	c := it.Clone()
	c.FeedingLog[0].FoodType = "rat"
	require.Equal(t, "mouse", it.FeedingLog[0].FoodType)
}
