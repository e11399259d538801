package cli

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"basic-cleaning/services"
)

func validArgs() []string {
	return []string{
		"--input_artifact", "sample.csv:latest",
		"--output_artifact", "clean_sample.csv",
		"--output_type", "clean_sample",
		"--output_description", "Data with outliers and null values removed",
		"--min_price", "10",
		"--max_price", "350",
	}
}

func execute(args []string) (*services.Params, error) {
	var got *services.Params
	cmd := NewRootCommand(func(_ context.Context, p services.Params) error {
		got = &p
		return nil
	})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return got, err
}

func TestRootCommand_ParsesAllFlags(t *testing.T) {
	got, err := execute(validArgs())
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, services.Params{
		InputArtifact:     "sample.csv:latest",
		OutputArtifact:    "clean_sample.csv",
		OutputType:        "clean_sample",
		OutputDescription: "Data with outliers and null values removed",
		MinPrice:          10,
		MaxPrice:          350,
	}, *got)
}

func TestRootCommand_MissingFlag(t *testing.T) {
	args := validArgs()[2:] // drop --input_artifact
	got, err := execute(args)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input_artifact")
	assert.Nil(t, got, "step must not run when a flag is missing")
}

func TestRootCommand_MalformedPrice(t *testing.T) {
	args := validArgs()
	args[9] = "ten"
	got, err := execute(args)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_price")
	assert.Nil(t, got)
}

func TestRootCommand_RejectsInvalidParams(t *testing.T) {
	args := validArgs()
	args[3] = "clean_sample.csv:v1"
	got, err := execute(args)
	assert.True(t, errors.Is(err, services.ErrInvalidParams))
	assert.Nil(t, got)
}

func TestRootCommand_InvertedBoundsAreAccepted(t *testing.T) {
	args := validArgs()
	args[9], args[11] = "500", "100"
	got, err := execute(args)
	require.NoError(t, err)
	assert.Equal(t, 500.0, got.MinPrice)
	assert.Equal(t, 100.0, got.MaxPrice)
}

func TestRootCommand_PropagatesRunError(t *testing.T) {
	boom := errors.New("artifact not found")
	cmd := NewRootCommand(func(context.Context, services.Params) error { return boom })
	cmd.SetArgs(validArgs())
	assert.ErrorIs(t, cmd.ExecuteContext(context.Background()), boom)
}
