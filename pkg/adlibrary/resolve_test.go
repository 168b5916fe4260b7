package adlibrary

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearchClient struct {
	pages []Page
	err   error
}

func (f *fakeSearchClient) SearchPages(_ context.Context, _ string, _ int) ([]Page, error) {
	return f.pages, f.err
}

func (f *fakeSearchClient) GetActiveAds(_ context.Context, _ string, _ int) ([]LibraryAd, error) {
	return nil, nil
}

func TestNormalizeBrandName(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"PulseFit", "pulsefit"},
		{"  Iron   Track ", "iron track"},
		{"CRATE CHEF", "crate chef"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, NormalizeBrandName(tt.in))
	}
}

func TestDisplayBrandName(t *testing.T) {
	assert.Equal(t, "Iron Track", DisplayBrandName("  IRON   track"))
}

func TestResolvePageID_ExactMatchWins(t *testing.T) {
	c := &fakeSearchClient{pages: []Page{
		{ID: "1", Name: "PulseFit Community"},
		{ID: "2", Name: "PulseFit"},
	}}

	id, err := ResolvePageID(context.Background(), c, "pulsefit", 25)
	require.NoError(t, err)
	assert.Equal(t, "2", id)
}

func TestResolvePageID_VerifiedBreaksTies(t *testing.T) {
	c := &fakeSearchClient{pages: []Page{
		{ID: "1", Name: "PulseFit", Verified: false, Likes: 99999},
		{ID: "2", Name: "PulseFit", Verified: true, Likes: 10},
	}}

	id, err := ResolvePageID(context.Background(), c, "PulseFit", 25)
	require.NoError(t, err)
	assert.Equal(t, "2", id)
}

func TestResolvePageID_LikesBreakRemainingTies(t *testing.T) {
	c := &fakeSearchClient{pages: []Page{
		{ID: "1", Name: "PulseFit", Likes: 10},
		{ID: "2", Name: "PulseFit", Likes: 500},
	}}

	id, err := ResolvePageID(context.Background(), c, "PulseFit", 25)
	require.NoError(t, err)
	assert.Equal(t, "2", id)
}

func TestResolvePageID_FallsBackToFirstResult(t *testing.T) {
	c := &fakeSearchClient{pages: []Page{
		{ID: "7", Name: "Something Else"},
	}}

	id, err := ResolvePageID(context.Background(), c, "PulseFit", 25)
	require.NoError(t, err)
	assert.Equal(t, "7", id)
}

func TestResolvePageID_NoResults(t *testing.T) {
	_, err := ResolvePageID(context.Background(), &fakeSearchClient{}, "PulseFit", 25)
	assert.Error(t, err)
}

func TestResolvePageID_SearchError(t *testing.T) {
	c := &fakeSearchClient{err: eris.New("boom")}
	_, err := ResolvePageID(context.Background(), c, "PulseFit", 25)
	assert.Error(t, err)
}
