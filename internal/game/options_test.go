package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMapFolderName(t *testing.T) {
	cases := []struct {
		scenarioFile string
		folder       string
	}{
		{"/maps/scmp_001/SCMP_001_scenario.lua", "scmp_001"},
		{`C:\maps\neroxis_map_generator\generated_scenario.lua`, "neroxis_map_generator"},
		{"//maps//x1mp_014//x1mp_014_scenario.lua", "x1mp_014"},
	}
	for _, tc := range cases {
		folder, err := parseMapFolderName(tc.scenarioFile)
		require.NoError(t, err)
		assert.Equal(t, tc.folder, folder)
	}

	_, err := parseMapFolderName("scenario.lua")
	assert.Error(t, err)
	_, err = parseMapFolderName("")
	assert.Error(t, err)
}

func TestOptionIntCoercions(t *testing.T) {
	for _, value := range []interface{}{3, int32(3), int64(3), float64(3), "3"} {
		n, ok := optionInt(value)
		require.True(t, ok, "value %#v", value)
		assert.Equal(t, 3, n)
	}

	for _, value := range []interface{}{"three", nil, true} {
		_, ok := optionInt(value)
		assert.False(t, ok, "value %#v", value)
	}
}

func TestOptionString(t *testing.T) {
	assert.Equal(t, "explored", optionString("explored"))
	assert.Equal(t, "3", optionString(3))
	assert.Equal(t, "false", optionString(false))
}

func TestVictoryConditionFromString(t *testing.T) {
	assert.Equal(t, VictoryConditionDemoralization, VictoryConditionFromString("demoralization"))
	assert.Equal(t, VictoryConditionDomination, VictoryConditionFromString("domination"))
	assert.Equal(t, VictoryConditionEradication, VictoryConditionFromString("eradication"))
	assert.Equal(t, VictoryConditionSandbox, VictoryConditionFromString("sandbox"))
	assert.Equal(t, VictoryConditionUnknown, VictoryConditionFromString("something else"))
}
