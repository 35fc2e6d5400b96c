package dto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLeadersMarshalsVariants(t *testing.T) {
	absent, err := json.Marshal(NoLeaders())
	require.NoError(t, err)
	require.JSONEq(t, `null`, string(absent))

	empty, err := json.Marshal(SomeLeaders())
	require.NoError(t, err)
	require.JSONEq(t, `[]`, string(empty))

	card, err := json.Marshal(ProjectCard{Key: "nest", Leaders: SomeLeaders("arkid15r", "kasya")})
	require.NoError(t, err)
	require.Contains(t, string(card), `"leaders":["arkid15r","kasya"]`)
}

func TestLeadersUnmarshalDistinguishesNullFromList(t *testing.T) {
	var card ChapterCard
	require.NoError(t, json.Unmarshal([]byte(`{"key":"london","leaders":null}`), &card))
	require.False(t, card.Leaders.Present())
	require.Nil(t, card.Leaders.Names())

	require.NoError(t, json.Unmarshal([]byte(`{"key":"london","leaders":["alice"]}`), &card))
	require.True(t, card.Leaders.Present())
	require.Equal(t, []string{"alice"}, card.Leaders.Names())

	var missing CommitteeCard
	require.NoError(t, json.Unmarshal([]byte(`{"key":"education"}`), &missing))
	require.False(t, missing.Leaders.Present())
}

func TestLeadersFromTreatsEmptyAsAbsent(t *testing.T) {
	require.False(t, LeadersFrom(nil).Present())
	require.False(t, LeadersFrom([]string{}).Present())
	require.True(t, LeadersFrom([]string{"bob"}).Present())
}
