package sketchfab

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formaworks/forma-api/internal/domain"
	"github.com/formaworks/forma-api/internal/provider"
	"github.com/formaworks/forma-api/internal/storage"
)

type fakeTracker struct {
	mu       sync.Mutex
	progress []int
	jobID    string
	active   bool
}

func (f *fakeTracker) MarkProcessing(_ uuid.UUID, p int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress = append(f.progress, p)
}

func (f *fakeTracker) UpdateProgress(_ uuid.UUID, p int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress = append(f.progress, p)
}

func (f *fakeTracker) SetProviderJobID(_ uuid.UUID, jobID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobID = jobID
}

func (f *fakeTracker) IsActive(_ uuid.UUID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

// fakeSearchAPI scripts the index responses. Pages are consumed in order,
// one per Search call.
type fakeSearchAPI struct {
	pages     []*SearchPage
	searchErr error

	link       *DownloadLink
	resolveErr error

	archive  []byte
	fetchErr error

	searches []SearchQuery
}

func (f *fakeSearchAPI) Search(_ context.Context, q SearchQuery) (*SearchPage, error) {
	f.searches = append(f.searches, q)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if len(f.pages) == 0 {
		return &SearchPage{Query: q.Query}, nil
	}
	page := f.pages[0]
	f.pages = f.pages[1:]
	return page, nil
}

func (f *fakeSearchAPI) ResolveDownload(_ context.Context, _ *Model) (*DownloadLink, error) {
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	return f.link, nil
}

func (f *fakeSearchAPI) Fetch(_ context.Context, _ string) ([]byte, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.archive, nil
}

func pageWith(models ...Model) *SearchPage {
	return &SearchPage{TotalCount: len(models), Models: models}
}

func testProvider(t *testing.T, api *fakeSearchAPI) (*Provider, *fakeTracker) {
	t.Helper()
	store, err := storage.NewLocalBackend(t.TempDir(), nil)
	require.NoError(t, err)
	tracker := &fakeTracker{active: true}
	return newWithAPI(api, store, tracker, nil), tracker
}

func TestProduceDownloadableMatch(t *testing.T) {
	t.Parallel()

	model := Model{
		UID:          "abc123",
		Name:         "Red Chair",
		Author:       "modeler",
		AuthorURL:    "https://example.com/modeler",
		License:      "cc0",
		Downloadable: true,
		ThumbnailURL: "https://cdn.example.com/thumb.png",
	}
	api := &fakeSearchAPI{
		pages:   []*SearchPage{pageWith(model)},
		link:    &DownloadLink{URL: "https://dl.example.com/abc123.zip", Format: "gltf", Size: 9},
		archive: []byte("glTF-data"),
	}
	p, tracker := testProvider(t, api)
	taskID := uuid.New()

	result, err := p.Produce(context.Background(), taskID, domain.GenerateRequest{Prompt: "red chair"})
	require.NoError(t, err)

	assert.True(t, result.Downloadable)
	assert.Equal(t, "gltf", result.FileFormat)
	assert.Equal(t, int64(len("glTF-data")), result.FileSize)
	assert.Equal(t, ProviderName, result.Provider)
	assert.Equal(t, []int{10, 30, 80}, tracker.progress)
	assert.Equal(t, "abc123", tracker.jobID)

	require.NotNil(t, result.Attribution)
	assert.Equal(t, "abc123", result.Attribution.SourceID)
	assert.Equal(t, "modeler", result.Attribution.Author)
	assert.False(t, result.Attribution.AttributionRequired)
	assert.True(t, result.Attribution.CommercialUse)

	data, err := p.store.Read(context.Background(), result.ModelRef)
	require.NoError(t, err)
	assert.Equal(t, []byte("glTF-data"), data)
}

func TestProduceDegradedWhenNotDownloadable(t *testing.T) {
	t.Parallel()

	model := Model{
		UID:       "vx9",
		Name:      "Display Only",
		Author:    "artist",
		License:   "cc-by-nc",
		ViewerURL: "https://example.com/3d-models/vx9",
		EmbedURL:  "https://example.com/models/vx9/embed",
	}
	api := &fakeSearchAPI{
		// First search (downloadable only) comes back empty, the widened
		// one finds the display-only model.
		pages:      []*SearchPage{pageWith(), pageWith(model)},
		resolveErr: ErrNotDownloadable,
	}
	p, tracker := testProvider(t, api)

	result, err := p.Produce(context.Background(), uuid.New(), domain.GenerateRequest{Prompt: "display only"})
	require.NoError(t, err)

	assert.False(t, result.Downloadable)
	assert.Empty(t, result.ModelRef)
	assert.Equal(t, "https://example.com/3d-models/vx9", result.PreviewRef)
	require.NotNil(t, result.Attribution)
	assert.True(t, result.Attribution.AttributionRequired)
	assert.False(t, result.Attribution.CommercialUse)

	require.Len(t, api.searches, 2)
	assert.True(t, api.searches[0].Downloadable)
	assert.False(t, api.searches[1].Downloadable)
	assert.Equal(t, []int{10, 30}, tracker.progress)
}

func TestProduceDegradedWhenNoLinkOffered(t *testing.T) {
	t.Parallel()

	model := Model{UID: "m1", Downloadable: true, EmbedURL: "https://example.com/m1/embed"}
	api := &fakeSearchAPI{
		pages:      []*SearchPage{pageWith(model)},
		resolveErr: ErrNoDownloadLink,
	}
	p, _ := testProvider(t, api)

	result, err := p.Produce(context.Background(), uuid.New(), domain.GenerateRequest{Prompt: "x"})
	require.NoError(t, err)
	assert.False(t, result.Downloadable)
	assert.Equal(t, "https://example.com/m1/embed", result.PreviewRef)
}

func TestProduceNoMatch(t *testing.T) {
	t.Parallel()

	api := &fakeSearchAPI{pages: []*SearchPage{pageWith(), pageWith()}}
	p, _ := testProvider(t, api)

	_, err := p.Produce(context.Background(), uuid.New(), domain.GenerateRequest{Prompt: "nothing like this"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no model in the content index")
}

func TestProduceSearchFailure(t *testing.T) {
	t.Parallel()

	api := &fakeSearchAPI{searchErr: errors.New("index unreachable")}
	p, _ := testProvider(t, api)

	_, err := p.Produce(context.Background(), uuid.New(), domain.GenerateRequest{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index unreachable")
}

func TestProduceCancelledAfterMatch(t *testing.T) {
	t.Parallel()

	model := Model{UID: "m1", Downloadable: true}
	api := &fakeSearchAPI{pages: []*SearchPage{pageWith(model)}}
	p, tracker := testProvider(t, api)
	tracker.active = false

	_, err := p.Produce(context.Background(), uuid.New(), domain.GenerateRequest{Prompt: "x"})
	require.ErrorIs(t, err, provider.ErrTaskCancelled)
}

func TestLicenseFlags(t *testing.T) {
	t.Parallel()

	cases := []struct {
		license             string
		attributionRequired bool
		commercialUse       bool
	}{
		{"cc0", false, true},
		{"CC0-1.0", false, true},
		{"by", true, true},
		{"cc-by-sa", true, true},
		{"by-nc", true, false},
		{"cc-by-nc-sa", true, false},
		{"", true, false},
		{"proprietary", true, false},
	}
	for _, tc := range cases {
		attributionRequired, commercialUse := LicenseFlags(tc.license)
		assert.Equal(t, tc.attributionRequired, attributionRequired, "license %q", tc.license)
		assert.Equal(t, tc.commercialUse, commercialUse, "license %q", tc.license)
	}
}
