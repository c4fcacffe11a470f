package cleanup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"editorimages/internal/models"
)

// fakeImageStore keeps images in memory and records deletions.
type fakeImageStore struct {
	images      []models.EditorImage
	listErr     error
	fileErrs    map[int64]error
	recordErrs  map[int64]error
	filesGone   []int64
	recordsGone []int64
}

func (f *fakeImageStore) ListImages(ctx context.Context) ([]models.EditorImage, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]models.EditorImage, len(f.images))
	copy(out, f.images)
	return out, nil
}

func (f *fakeImageStore) DeleteImage(ctx context.Context, id int64) error {
	if err := f.recordErrs[id]; err != nil {
		return err
	}
	for i, img := range f.images {
		if img.ID == id {
			f.images = append(f.images[:i], f.images[i+1:]...)
			break
		}
	}
	f.recordsGone = append(f.recordsGone, id)
	return nil
}

func (f *fakeImageStore) DeleteImageFile(ctx context.Context, img models.EditorImage) error {
	if err := f.fileErrs[img.ID]; err != nil {
		return err
	}
	f.filesGone = append(f.filesGone, img.ID)
	return nil
}

func (f *fakeImageStore) ids() []int64 {
	var ids []int64
	for _, img := range f.images {
		ids = append(ids, img.ID)
	}
	return ids
}

// fakeEntity is one registered content type with canned attribute values.
type fakeEntity struct {
	name   string
	attrs  []Attribute
	values map[string][]string
	errs   map[string][]error
}

func (e *fakeEntity) Name() string            { return e.name }
func (e *fakeEntity) Attributes() []Attribute { return e.attrs }

func (e *fakeEntity) TextValues(ctx context.Context, attr string) ([]string, []error) {
	return e.values[attr], e.errs[attr]
}

type fakeCatalog struct {
	types []EntityType
	err   error
}

func (c *fakeCatalog) EntityTypes(ctx context.Context) ([]EntityType, error) {
	return c.types, c.err
}

func storeWith(ids ...int64) *fakeImageStore {
	s := &fakeImageStore{}
	for _, id := range ids {
		s.images = append(s.images, models.EditorImage{
			ID:       id,
			FilePath: fmt.Sprintf("/media/editor_uploads/%d.jpg", id),
			URL:      fmt.Sprintf("/files/editor_uploads/%d.jpg", id),
		})
	}
	return s
}

func postsWith(contents ...string) *fakeEntity {
	return &fakeEntity{
		name: "blog_posts",
		attrs: []Attribute{
			{Name: "title", Text: true},
			{Name: "content", Text: true},
			{Name: "author_id", Text: false},
		},
		values: map[string][]string{"content": contents},
	}
}

func TestScanDeletesAllWhenNothingReferenced(t *testing.T) {
	store := storeWith(1, 2)
	scanner := &Scanner{
		Images:  store,
		Catalog: &fakeCatalog{types: []EntityType{postsWith("<p>plain text, no markers</p>")}},
	}

	report, err := scanner.Scan(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 2, report.TotalImages)
	assert.Equal(t, 0, report.UsedCount)
	assert.Equal(t, 2, report.UnusedCount)
	assert.Equal(t, []int64{1, 2}, report.DeletedIDs)
	assert.Empty(t, report.Warnings)
	assert.Empty(t, store.images)
}

func TestScanDeletesExactlyTheUnreferencedSet(t *testing.T) {
	store := storeWith(1, 2, 3, 4, 5)
	content := `<p><img data-image-id="2" src="/files/a.jpg"></p>` +
		`<div data-image-id="4"></div>`
	scanner := &Scanner{
		Images:  store,
		Catalog: &fakeCatalog{types: []EntityType{postsWith(content)}},
	}

	report, err := scanner.Scan(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 3, 5}, report.DeletedIDs)
	assert.ElementsMatch(t, []int64{2, 4}, store.ids())
}

func TestScanDryRunDoesNotMutate(t *testing.T) {
	store := storeWith(1, 2, 3)
	var out bytes.Buffer
	scanner := &Scanner{
		Images:  store,
		Catalog: &fakeCatalog{types: []EntityType{postsWith(`<img data-image-id="2">`)}},
		Out:     &out,
	}

	report, err := scanner.Scan(context.Background(), true)
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Equal(t, 3, report.TotalImages)
	assert.Equal(t, 1, report.UsedCount)
	assert.Equal(t, 2, report.UnusedCount)
	assert.Empty(t, report.DeletedIDs)

	assert.ElementsMatch(t, []int64{1, 2, 3}, store.ids())
	assert.Empty(t, store.filesGone)
	assert.Empty(t, store.recordsGone)

	assert.Contains(t, out.String(), "DRY RUN")
	assert.Contains(t, out.String(), "Would delete: /files/editor_uploads/1.jpg (ID: 1)")
	assert.Contains(t, out.String(), "Would delete: /files/editor_uploads/3.jpg (ID: 3)")
	assert.NotContains(t, out.String(), "(ID: 2)")
}

func TestScanZeroImages(t *testing.T) {
	store := storeWith()
	var out bytes.Buffer
	scanner := &Scanner{
		Images:  store,
		Catalog: &fakeCatalog{types: []EntityType{postsWith()}},
		Out:     &out,
	}

	report, err := scanner.Scan(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 0, report.TotalImages)
	assert.Equal(t, 0, report.UnusedCount)
	assert.Empty(t, report.DeletedIDs)
	assert.Empty(t, report.Warnings)
	assert.Contains(t, out.String(), "No unused images found!")
}

func TestScanMarkerCountsFromAnyTypeAndAttribute(t *testing.T) {
	store := storeWith(42, 43)

	// Marker hides in the second text attribute of the second type, and
	// appears twice; duplicates collapse.
	comments := &fakeEntity{
		name: "comments",
		attrs: []Attribute{
			{Name: "body", Text: true},
			{Name: "signature", Text: true},
		},
		values: map[string][]string{
			"body":      {"nothing here"},
			"signature": {`x data-image-id="42" y data-image-id="42" z`},
		},
	}
	scanner := &Scanner{
		Images:  store,
		Catalog: &fakeCatalog{types: []EntityType{postsWith("no refs"), comments}},
	}

	report, err := scanner.Scan(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 1, report.UsedCount)
	assert.Equal(t, []int64{43}, report.DeletedIDs)
	assert.Equal(t, []int64{42}, store.ids())
}

func TestScanSkipsTypesWithoutTextAttributes(t *testing.T) {
	relations := &fakeEntity{
		name: "post_tags",
		attrs: []Attribute{
			{Name: "post_id", Text: false},
			{Name: "tag_id", Text: false},
		},
	}
	scanner := &Scanner{
		Images:  storeWith(1),
		Catalog: &fakeCatalog{types: []EntityType{relations, postsWith("text")}},
	}

	report, err := scanner.Scan(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, 1, report.ModelsChecked)
}

func TestScanToleratesInstanceReadErrors(t *testing.T) {
	store := storeWith(1, 2)

	posts := postsWith(`<img data-image-id="1">`)
	posts.errs = map[string][]error{"content": {errors.New("undecodable value")}}

	scanner := &Scanner{
		Images:  store,
		Catalog: &fakeCatalog{types: []EntityType{posts}},
	}

	report, err := scanner.Scan(context.Background(), false)
	require.NoError(t, err)

	// The bad row is a warning; the readable rows still classify both images.
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "blog_posts.content")
	assert.Contains(t, report.Warnings[0], "undecodable value")
	assert.Equal(t, []int64{2}, report.DeletedIDs)
	assert.Equal(t, []int64{1}, store.ids())
}

func TestScanFileDeletionFailureStillDeletesRecord(t *testing.T) {
	store := storeWith(1, 2)
	store.fileErrs = map[int64]error{1: errors.New("file already gone")}

	scanner := &Scanner{
		Images:  store,
		Catalog: &fakeCatalog{types: []EntityType{postsWith()}},
	}

	report, err := scanner.Scan(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2}, report.DeletedIDs)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "file already gone")
	assert.Empty(t, store.images)
}

func TestScanRecordDeletionFailureIsAWarning(t *testing.T) {
	store := storeWith(1, 2)
	store.recordErrs = map[int64]error{1: errors.New("connection reset")}

	scanner := &Scanner{
		Images:  store,
		Catalog: &fakeCatalog{types: []EntityType{postsWith()}},
	}

	report, err := scanner.Scan(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, []int64{2}, report.DeletedIDs)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "image 1")
}

func TestScanIsIdempotent(t *testing.T) {
	store := storeWith(1, 2, 3)
	catalog := &fakeCatalog{types: []EntityType{postsWith(`<img data-image-id="3">`)}}
	scanner := &Scanner{Images: store, Catalog: catalog}

	first, err := scanner.Scan(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, first.DeletedIDs)

	second, err := scanner.Scan(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, second.TotalImages)
	assert.Equal(t, 0, second.UnusedCount)
	assert.Empty(t, second.DeletedIDs)
	assert.Empty(t, second.Warnings)
}

func TestScanFailsWhenImageStoreUnreachable(t *testing.T) {
	scanner := &Scanner{
		Images:  &fakeImageStore{listErr: errors.New("store down")},
		Catalog: &fakeCatalog{},
	}

	_, err := scanner.Scan(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store down")
}

func TestScanFailsWhenCatalogUnreachable(t *testing.T) {
	scanner := &Scanner{
		Images:  storeWith(1),
		Catalog: &fakeCatalog{err: errors.New("catalog down")},
	}

	_, err := scanner.Scan(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog down")
}
