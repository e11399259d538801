package services

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"basic-cleaning/models"
)

const rawCSV = `id,name,price,latitude,longitude,room_type
1,Cozy studio,50,40.7,-74.0,Private room
2,Penthouse,5000,40.7,-74.0,Entire home/apt
3,Null island,50,0,0,Shared room
`

type fakeArtifacts struct {
	inputPath string
	useErr    error
	logErr    error

	usedRef   models.ArtifactRef
	loggedAs  models.ArtifactSpec
	loggedCSV string
}

func (f *fakeArtifacts) Use(_ context.Context, _ *models.Run, ref models.ArtifactRef) (*models.ArtifactVersion, string, error) {
	f.usedRef = ref
	if f.useErr != nil {
		return nil, "", f.useErr
	}
	return &models.ArtifactVersion{ID: 1, Name: ref.Name, Version: 0, Type: "raw_data"}, f.inputPath, nil
}

func (f *fakeArtifacts) Log(_ context.Context, _ *models.Run, spec models.ArtifactSpec, localPath string) (*models.ArtifactVersion, error) {
	if f.logErr != nil {
		return nil, f.logErr
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return nil, err
	}
	f.loggedAs = spec
	f.loggedCSV = string(data)
	return &models.ArtifactVersion{ID: 2, Name: spec.Name, Version: 4, Type: spec.Type, Digest: "d1", ObjectKey: "k1"}, nil
}

type fakeRuns struct {
	config   map[string]any
	finished []models.RunStatus
}

func (f *fakeRuns) StartRun(_ context.Context, jobType string, config map[string]any) (*models.Run, error) {
	f.config = config
	return &models.Run{ID: 11, Project: "nyc_airbnb", JobType: jobType, Status: models.RunRunning}, nil
}

func (f *fakeRuns) FinishRun(_ context.Context, _ int64, status models.RunStatus) error {
	f.finished = append(f.finished, status)
	return nil
}

type fakeEvents struct {
	published []models.ArtifactLogged
	err       error
}

func (f *fakeEvents) PublishArtifactLogged(_ context.Context, evt models.ArtifactLogged) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, evt)
	return nil
}

func newTestStep(t *testing.T, input string) (*BasicCleaning, *fakeArtifacts, *fakeRuns, *fakeEvents) {
	t.Helper()
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "sample.csv")
	require.NoError(t, os.WriteFile(inputPath, []byte(input), 0644))

	artifacts := &fakeArtifacts{inputPath: inputPath}
	runs := &fakeRuns{}
	events := &fakeEvents{}
	step := NewBasicCleaning(artifacts, runs, events, filepath.Join(dir, "out", "clean_sample.csv"), newTestLogger())
	step.now = func() time.Time { return time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC) }
	return step, artifacts, runs, events
}

func testParams() Params {
	return Params{
		InputArtifact:     "sample.csv:latest",
		OutputArtifact:    "clean_sample.csv",
		OutputType:        "clean_sample",
		OutputDescription: "Data with outliers removed",
		MinPrice:          10,
		MaxPrice:          1000,
	}
}

func TestBasicCleaning_Run(t *testing.T) {
	step, artifacts, runs, events := newTestStep(t, rawCSV)

	v, err := step.Run(context.Background(), testParams())
	require.NoError(t, err)

	assert.Equal(t, "clean_sample.csv:v4", v.QualifiedName())
	assert.Equal(t, "sample.csv", artifacts.usedRef.Name)
	assert.Equal(t, "latest", artifacts.usedRef.Alias)

	assert.Equal(t, "id,name,price,latitude,longitude,room_type\n1,Cozy studio,50,40.7,-74.0,Private room\n", artifacts.loggedCSV)
	assert.Equal(t, "clean_sample", artifacts.loggedAs.Type)
	assert.Equal(t, "Data with outliers removed", artifacts.loggedAs.Description)
	assert.Equal(t, 3, artifacts.loggedAs.Metadata["rows_in"])
	assert.Equal(t, 1, artifacts.loggedAs.Metadata["rows_out"])
	assert.Equal(t, "sample.csv:v0", artifacts.loggedAs.Metadata["source"])

	assert.Equal(t, "sample.csv:latest", runs.config["input_artifact"])
	assert.Equal(t, 1000.0, runs.config["max_price"])
	assert.Equal(t, []models.RunStatus{models.RunFinished}, runs.finished)

	require.Len(t, events.published, 1)
	assert.Equal(t, models.ArtifactLogged{
		RunID:     11,
		Project:   "nyc_airbnb",
		Name:      "clean_sample.csv",
		Version:   4,
		Type:      "clean_sample",
		Digest:    "d1",
		ObjectKey: "k1",
		LoggedAt:  time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC),
	}, events.published[0])
}

func TestBasicCleaning_InfiniteMaxPrice(t *testing.T) {
	step, artifacts, runs, _ := newTestStep(t, rawCSV)
	p := testParams()
	p.MaxPrice = math.Inf(1)

	_, err := step.Run(context.Background(), p)
	require.NoError(t, err)

	assert.Contains(t, artifacts.loggedCSV, "2,Penthouse,5000")
	assert.Equal(t, "+Inf", runs.config["max_price"])
	assert.Equal(t, "+Inf", artifacts.loggedAs.Metadata["max_price"])

	_, err = json.Marshal(runs.config)
	assert.NoError(t, err, "run config must be JSON encodable")
	_, err = json.Marshal(artifacts.loggedAs.Metadata)
	assert.NoError(t, err, "artifact metadata must be JSON encodable")
}

func TestBasicCleaning_HeaderOnlyInput(t *testing.T) {
	step, artifacts, _, _ := newTestStep(t, "id,name,price,latitude,longitude,room_type\n")

	_, err := step.Run(context.Background(), testParams())
	require.NoError(t, err)
	assert.Equal(t, "id,name,price,latitude,longitude,room_type\n", artifacts.loggedCSV)
}

func TestBasicCleaning_UseErrorFailsRun(t *testing.T) {
	step, artifacts, runs, events := newTestStep(t, rawCSV)
	missing := errors.New("artifact not found")
	artifacts.useErr = missing

	_, err := step.Run(context.Background(), testParams())
	assert.ErrorIs(t, err, missing)
	assert.Equal(t, []models.RunStatus{models.RunFailed}, runs.finished)
	assert.Empty(t, events.published)
}

func TestBasicCleaning_MissingColumnFailsRun(t *testing.T) {
	step, _, runs, _ := newTestStep(t, "id,price\n1,50\n")

	_, err := step.Run(context.Background(), testParams())
	assert.ErrorIs(t, err, ErrMissingColumn)
	assert.Equal(t, []models.RunStatus{models.RunFailed}, runs.finished)
}

func TestBasicCleaning_PublishErrorIsNotFatal(t *testing.T) {
	step, _, runs, events := newTestStep(t, rawCSV)
	events.err = errors.New("broker down")

	v, err := step.Run(context.Background(), testParams())
	require.NoError(t, err)
	assert.NotNil(t, v)
	assert.Equal(t, []models.RunStatus{models.RunFinished}, runs.finished)
}

func TestBasicCleaning_InvalidParamsStartNoRun(t *testing.T) {
	step, _, runs, _ := newTestStep(t, rawCSV)
	p := testParams()
	p.OutputType = " "

	_, err := step.Run(context.Background(), p)
	assert.ErrorIs(t, err, ErrInvalidParams)
	assert.Nil(t, runs.config)
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
		ok     bool
	}{
		{"valid", func(*Params) {}, true},
		{"inverted bounds", func(p *Params) { p.MinPrice, p.MaxPrice = 500, 10 }, true},
		{"input by version", func(p *Params) { p.InputArtifact = "sample.csv:v2" }, true},
		{"qualified input", func(p *Params) { p.InputArtifact = "team/nyc_airbnb/sample.csv:latest" }, true},
		{"infinite bounds", func(p *Params) { p.MinPrice, p.MaxPrice = math.Inf(-1), math.Inf(1) }, true},
		{"empty input", func(p *Params) { p.InputArtifact = "" }, false},
		{"output with alias", func(p *Params) { p.OutputArtifact = "clean.csv:latest" }, false},
		{"output with slash", func(p *Params) { p.OutputArtifact = "a/b.csv" }, false},
		{"empty type", func(p *Params) { p.OutputType = "" }, false},
		{"nan price", func(p *Params) { p.MinPrice = math.NaN() }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testParams()
			tt.mutate(&p)
			err := p.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidParams)
			}
		})
	}
}
