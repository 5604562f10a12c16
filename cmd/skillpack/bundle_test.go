package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillpack/pkg/bundler"
	"github.com/jingkaihe/skillpack/pkg/namer"
	"github.com/jingkaihe/skillpack/pkg/walker"
)

func TestParseDepth(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"full", walker.FullDepth, false},
		{"FULL", walker.FullDepth, false},
		{"0", 0, false},
		{"3", 3, false},
		{"-1", 0, true},
		{"deep", 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := parseDepth(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestBuildOptions(t *testing.T) {
	config := &BundleConfig{
		Output:      "/tmp/out",
		Formats:     []string{"directory", "zip"},
		Depth:       "2",
		Naming:      "preserve-path",
		StripPrefix: "kb",
	}

	opts, err := buildOptions(config)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/out", opts.OutputPath)
	assert.Equal(t, []bundler.Format{bundler.FormatDirectory, bundler.FormatZip}, opts.Formats)
	assert.Equal(t, 2, opts.LinkFollowDepth)
	assert.Equal(t, namer.StrategyPreservePath, opts.ResourceNaming)
	assert.Equal(t, "kb", opts.StripPrefix)
	assert.True(t, opts.ExcludeNavigationFiles)
}

func TestBuildOptionsRejectsBadValues(t *testing.T) {
	_, err := buildOptions(&BundleConfig{Formats: []string{"tarball"}, Depth: "full"})
	assert.Error(t, err)

	_, err = buildOptions(&BundleConfig{Formats: []string{"zip"}, Depth: "-2"})
	assert.Error(t, err)

	_, err = buildOptions(&BundleConfig{Formats: []string{"zip"}, Depth: "full", Naming: "bogus"})
	assert.Error(t, err)
}
