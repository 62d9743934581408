package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCatalogCSV(t *testing.T) {
	raw := strings.Join([]string{
		"code,marca,submarca,modelo,segmento,carroceria,descripcion",
		"AMIS-1,Toyota,Yaris,2020,compacto,sedan,Toyota Yaris 2020 4p",
		"AMIS-2,Nissan,Versa,2019,,,",
	}, "\n")

	entries, err := parseCatalogCSV(strings.NewReader(raw))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "AMIS-1", entries[0].Code)
	assert.Equal(t, "Toyota", entries[0].Marca)
	assert.Equal(t, "Yaris", entries[0].Submarca)
	assert.Equal(t, 2020, entries[0].Modelo)
	assert.Equal(t, "sedan", entries[0].Carroceria)

	assert.Equal(t, "AMIS-2", entries[1].Code)
	assert.Empty(t, entries[1].Segmento)
}

func TestParseCatalogCSVMinimalHeader(t *testing.T) {
	raw := "code,marca,modelo\nAMIS-1,Toyota,2020\n"
	entries, err := parseCatalogCSV(strings.NewReader(raw))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 2020, entries[0].Modelo)
}

func TestParseCatalogCSVRejectsUnknownColumn(t *testing.T) {
	raw := "code,marca,modelo,precio\nAMIS-1,Toyota,2020,100\n"
	_, err := parseCatalogCSV(strings.NewReader(raw))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown column")
}

func TestParseCatalogCSVRejectsMissingRequiredColumn(t *testing.T) {
	raw := "code,submarca,modelo\nAMIS-1,Yaris,2020\n"
	_, err := parseCatalogCSV(strings.NewReader(raw))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required column")
}

func TestParseCatalogCSVRejectsBadYear(t *testing.T) {
	raw := "code,marca,modelo\nAMIS-1,Toyota,veinte\n"
	_, err := parseCatalogCSV(strings.NewReader(raw))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid modelo year")
}

func TestParseCatalogCSVEmptyBody(t *testing.T) {
	raw := "code,marca,modelo\n"
	entries, err := parseCatalogCSV(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Empty(t, entries)
}
