package integration

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/pkolev/texturevault/internal/services"
	"github.com/pkolev/texturevault/internal/storage"
	"github.com/pkolev/texturevault/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageService_Integration_VersionHistory(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tdb := setupTest(t)
	fixtures := testutil.NewFixtures(tdb.DB)
	svc := services.NewImageService(tdb.DB, storage.NewDiskStore(t.TempDir()))
	ctx := context.Background()

	owner := fixtures.CreateAccount(t)
	collection := fixtures.CreateCollection(t, owner)

	image, err := svc.Create(ctx, collection.ID, owner.ID, "bark", "", []byte("v1"))
	require.NoError(t, err)

	_, err = svc.UploadVersion(ctx, image.ID, owner.ID, []byte("v2"))
	require.NoError(t, err)
	v3, err := svc.UploadVersion(ctx, image.ID, owner.ID, []byte("v3"))
	require.NoError(t, err)

	versions, err := svc.ListVersions(ctx, image.ID)
	require.NoError(t, err)
	require.Len(t, versions, 3)
	for i, v := range versions {
		assert.Equal(t, i+1, v.VersionNumber)
		assert.Equal(t, v.VersionNumber == 3, v.IsCurrent)
	}

	current, err := svc.CurrentVersion(ctx, image.ID)
	require.NoError(t, err)
	assert.Equal(t, v3.ID, current.ID)
	assert.Equal(t, []byte("v3"), current.Data)
}

func TestImageService_Integration_RestoreCopiesOldBytes(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tdb := setupTest(t)
	fixtures := testutil.NewFixtures(tdb.DB)
	svc := services.NewImageService(tdb.DB, storage.NewDiskStore(t.TempDir()))
	ctx := context.Background()

	owner := fixtures.CreateAccount(t)
	collection := fixtures.CreateCollection(t, owner)

	image, err := svc.Create(ctx, collection.ID, owner.ID, "bark", "", []byte("v1"))
	require.NoError(t, err)
	v2, err := svc.UploadVersion(ctx, image.ID, owner.ID, []byte("v2"))
	require.NoError(t, err)
	_, err = svc.UploadVersion(ctx, image.ID, owner.ID, []byte("v3"))
	require.NoError(t, err)

	restored, err := svc.RestoreVersion(ctx, v2.ID, owner.ID)
	require.NoError(t, err)

	// history is append-only: the restore lands as version 4 with v2's bytes
	assert.Equal(t, 4, restored.VersionNumber)
	assert.Equal(t, []byte("v2"), restored.Data)
	assert.True(t, restored.IsCurrent)

	versions, err := svc.ListVersions(ctx, image.ID)
	require.NoError(t, err)
	assert.Len(t, versions, 4)

	// v2 itself is untouched
	old, err := svc.GetVersion(ctx, v2.ID)
	require.NoError(t, err)
	assert.False(t, old.IsCurrent)
	assert.Equal(t, 2, old.VersionNumber)
}

func TestImageService_Integration_RestoreCurrentFails(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tdb := setupTest(t)
	fixtures := testutil.NewFixtures(tdb.DB)
	svc := services.NewImageService(tdb.DB, storage.NewDiskStore(t.TempDir()))
	ctx := context.Background()

	owner := fixtures.CreateAccount(t)
	collection := fixtures.CreateCollection(t, owner)

	image, err := svc.Create(ctx, collection.ID, owner.ID, "bark", "", []byte("v1"))
	require.NoError(t, err)

	current, err := svc.CurrentVersion(ctx, image.ID)
	require.NoError(t, err)

	_, err = svc.RestoreVersion(ctx, current.ID, owner.ID)

	assert.ErrorIs(t, err, services.ErrAlreadyCurrent)
}

func TestImageService_Integration_ConcurrentUploads(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tdb := setupTest(t)
	fixtures := testutil.NewFixtures(tdb.DB)
	svc := services.NewImageService(tdb.DB, storage.NewDiskStore(t.TempDir()))
	ctx := context.Background()

	owner := fixtures.CreateAccount(t)
	collection := fixtures.CreateCollection(t, owner)

	image, err := svc.Create(ctx, collection.ID, owner.ID, "bark", "", []byte("v1"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.UploadVersion(ctx, image.ID, owner.ID, []byte{byte(i)})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			// acceptable outcome: the loser retried once and still collided
			assert.True(t, errors.Is(err, services.ErrConcurrentModification))
		}
	}

	versions, err := svc.ListVersions(ctx, image.ID)
	require.NoError(t, err)

	// numbering is gapless and exactly one version is current
	currentCount := 0
	for i, v := range versions {
		assert.Equal(t, i+1, v.VersionNumber)
		if v.IsCurrent {
			currentCount++
		}
	}
	assert.Equal(t, 1, currentCount)
	assert.Equal(t, versions[len(versions)-1].VersionNumber, len(versions))
	assert.True(t, versions[len(versions)-1].IsCurrent)
}

func TestImageService_Integration_PublishWritesCurrentBytes(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tdb := setupTest(t)
	fixtures := testutil.NewFixtures(tdb.DB)
	store := storage.NewDiskStore(t.TempDir())
	svc := services.NewImageService(tdb.DB, store)
	ctx := context.Background()

	owner := fixtures.CreateAccount(t)
	collection := fixtures.CreateCollection(t, owner)

	image, err := svc.Create(ctx, collection.ID, owner.ID, "bark", "published/bark.png", []byte("v1"))
	require.NoError(t, err)

	published, err := svc.Publish(ctx, image.ID)
	require.NoError(t, err)
	assert.True(t, published.IsPublished)

	data, err := store.Read("published/bark.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), data)

	// a fresh upload invalidates the publish flag
	_, err = svc.UploadVersion(ctx, image.ID, owner.ID, []byte("v2"))
	require.NoError(t, err)

	reloaded, err := svc.GetByID(ctx, image.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsPublished)
}

func TestImageService_Integration_PublishWithoutTarget(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tdb := setupTest(t)
	fixtures := testutil.NewFixtures(tdb.DB)
	svc := services.NewImageService(tdb.DB, storage.NewDiskStore(t.TempDir()))
	ctx := context.Background()

	owner := fixtures.CreateAccount(t)
	collection := fixtures.CreateCollection(t, owner)

	image, err := svc.Create(ctx, collection.ID, owner.ID, "bark", "", []byte("v1"))
	require.NoError(t, err)

	_, err = svc.Publish(ctx, image.ID)

	assert.ErrorIs(t, err, services.ErrNoPublishTarget)
}
