package importer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const registryHeader = "BFS-Nr;Gemeindename;Kantonskürzel;PLZ\n"

func TestParseRegistry(t *testing.T) {
	input := registryHeader +
		"261;Zürich;ZH;8000\n" +
		"351;Bern;BE;3000\n"

	records, skipped, err := ParseRegistry(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
	require.Len(t, records, 2)

	assert.Equal(t, Record{BFSNumber: 261, Name: "Zürich", Canton: "ZH", PostalCode: "8000"}, records[0])
	assert.Equal(t, Record{BFSNumber: 351, Name: "Bern", Canton: "BE", PostalCode: "3000"}, records[1])
}

func TestParseRegistryFirstPostalCodeWins(t *testing.T) {
	// The export repeats a municipality once per postal code.
	input := registryHeader +
		"261;Zürich;ZH;8000\n" +
		"261;Zürich;ZH;8001\n" +
		"261;Zürich;ZH;8002\n"

	records, skipped, err := ParseRegistry(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
	require.Len(t, records, 1)
	assert.Equal(t, "8000", records[0].PostalCode)
}

func TestParseRegistryStripsBOM(t *testing.T) {
	input := "\ufeff" + registryHeader + "261;Zürich;ZH;8000\n"

	records, _, err := ParseRegistry(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 261, records[0].BFSNumber)
}

func TestParseRegistrySkipsBadRows(t *testing.T) {
	input := registryHeader +
		"abc;Nowhere;ZH;8000\n" +
		";Nowhere;ZH;8000\n" +
		"262;;ZH;8000\n" +
		"263;Kloten;ZH;8302\n"

	records, skipped, err := ParseRegistry(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 3, skipped)
	require.Len(t, records, 1)
	assert.Equal(t, "Kloten", records[0].Name)
}

func TestParseRegistryMissingColumn(t *testing.T) {
	input := "BFS-Nr;Gemeindename;PLZ\n261;Zürich;8000\n"

	_, _, err := ParseRegistry(strings.NewReader(input))
	assert.Error(t, err)
}
