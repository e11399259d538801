package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"basic-cleaning/models"
)

func TestDecodeDataset(t *testing.T) {
	in := "\ufeffid,name,price\n1,\"Loft, SoHo\",120\n2,Studio,\n3\n"

	ds, err := DecodeDataset(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name", "price"}, ds.Header)
	require.Equal(t, 3, ds.Len())
	assert.Equal(t, models.Record{Line: 2, Fields: []string{"1", "Loft, SoHo", "120"}}, ds.Records[0])
	assert.Equal(t, "", ds.Records[1].Field(2))
	assert.Equal(t, 4, ds.Records[2].Line)
	assert.Equal(t, "", ds.Records[2].Field(2), "short rows read missing cells as empty")
}

func TestDecodeDatasetEmptyFile(t *testing.T) {
	_, err := DecodeDataset(strings.NewReader(""))
	assert.True(t, errors.Is(err, ErrNoHeader))
}

func TestReadDatasetMissingFile(t *testing.T) {
	_, err := ReadDataset(filepath.Join(t.TempDir(), "nope.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteDatasetRoundTrip(t *testing.T) {
	in := "id,name,price,latitude,longitude\n1,\"Loft, SoHo\",120,40.72,-74.00\n2,Studio,85.50,40.68,-73.95\n"
	ds, err := DecodeDataset(strings.NewReader(in))
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "nested", "clean_sample.csv")
	require.NoError(t, WriteDataset(out, ds))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, in, string(data), "values are passed through unchanged")
}

func TestWriteDatasetHeaderOnly(t *testing.T) {
	out := filepath.Join(t.TempDir(), "clean_sample.csv")
	require.NoError(t, WriteDataset(out, models.Dataset{Header: []string{"id", "price"}}))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "id,price\n", string(data))
}
