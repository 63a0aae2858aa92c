package sync

import (
	"context"
	"fmt"
	"os"
	"path"
	"sort"

	"github.com/leekycauldron/gcs-xikb-bridge/internal/elevenlabs"
	"github.com/leekycauldron/gcs-xikb-bridge/internal/storage"
	"github.com/leekycauldron/gcs-xikb-bridge/pkg/logger"
)

// Reconciler brings the agent's knowledge base in line with a bucket: new
// and changed objects are uploaded, orphaned documents deleted, and the
// agent configuration repointed at the resulting document set.
type Reconciler struct {
	store         storage.ObjectStorage
	kb            elevenlabs.KnowledgeBase
	defaultBucket string
	scratchDir    string
}

// NewReconciler builds a Reconciler. defaultBucket is used when an event
// does not name one; scratchDir may be empty to use the system temp dir.
func NewReconciler(store storage.ObjectStorage, kb elevenlabs.KnowledgeBase, defaultBucket, scratchDir string) *Reconciler {
	return &Reconciler{
		store:         store,
		kb:            kb,
		defaultBucket: defaultBucket,
		scratchDir:    scratchDir,
	}
}

// Result summarizes a reconciliation run.
type Result struct {
	Uploaded int
	Kept     int
	Deleted  int
	Failed   int
}

// Status renders the run outcome as a plain status string.
func (r Result) Status() string {
	return fmt.Sprintf("sync complete: %d uploaded, %d kept, %d deleted, %d failed",
		r.Uploaded, r.Kept, r.Deleted, r.Failed)
}

// Run performs a single reconciliation pass. Upload, delete, and agent
// update failures are logged and absorbed; only a failed bucket listing
// aborts the run, since there is nothing sane to reconcile against.
//
// The agent configuration is always updated before any deletion is issued,
// so it never transiently references a document about to be removed.
func (r *Reconciler) Run(ctx context.Context, event ChangeEvent) (Result, error) {
	bucket := event.Bucket
	if bucket == "" {
		bucket = r.defaultBucket
	}
	if bucket == "" {
		return Result{}, fmt.Errorf("no bucket in event and no default bucket configured")
	}

	logger.Log.Info().
		Str("bucket", bucket).
		Str("trigger", event.ObjectName).
		Str("event_type", event.EventType).
		Msg("Sync started")

	objects, err := r.store.ListObjects(ctx, bucket)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list bucket %s: %w", bucket, err)
	}
	bucketMap := make(map[string]storage.ObjectInfo, len(objects))
	for _, obj := range objects {
		bucketMap[obj.Key] = obj
	}

	remoteDocs, err := r.kb.ListDocuments(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list knowledge base: %w", err)
	}

	var result Result
	validDocs := make([]elevenlabs.DocumentRef, 0, len(bucketMap))
	var idsToDelete []string

	// Sorted iteration keeps logs and remote call order deterministic.
	names := make([]string, 0, len(bucketMap))
	for name := range bucketMap {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		// Documents are registered under the object's base name, so the
		// diff matches remote display names against that.
		displayName := path.Base(name)
		oldID, known := remoteDocs[displayName]
		switch {
		case known && name == event.ObjectName && event.IsFinalize():
			logger.Log.Info().Str("object", name).Msg("File changed, uploading new version")
			newID, err := r.upload(ctx, bucket, name)
			if err != nil {
				logger.Log.Error().Err(err).Str("object", name).Msg("Failed to upload changed file")
				result.Failed++
				continue
			}
			validDocs = append(validDocs, elevenlabs.DocumentRef{ID: newID, Name: displayName})
			idsToDelete = append(idsToDelete, oldID)
			result.Uploaded++
		case known:
			validDocs = append(validDocs, elevenlabs.DocumentRef{ID: oldID, Name: displayName})
			result.Kept++
		default:
			logger.Log.Info().Str("object", name).Msg("File is new, uploading")
			newID, err := r.upload(ctx, bucket, name)
			if err != nil {
				logger.Log.Error().Err(err).Str("object", name).Msg("Failed to upload new file")
				result.Failed++
				continue
			}
			validDocs = append(validDocs, elevenlabs.DocumentRef{ID: newID, Name: displayName})
			result.Uploaded++
		}
	}

	// Remote documents whose backing object is gone.
	bucketNames := make(map[string]struct{}, len(bucketMap))
	for name := range bucketMap {
		bucketNames[path.Base(name)] = struct{}{}
	}
	remoteNames := make([]string, 0, len(remoteDocs))
	for name := range remoteDocs {
		remoteNames = append(remoteNames, name)
	}
	sort.Strings(remoteNames)
	for _, name := range remoteNames {
		if _, ok := bucketNames[name]; !ok {
			logger.Log.Info().Str("document", name).Msg("File removed from bucket, marking document for deletion")
			idsToDelete = append(idsToDelete, remoteDocs[name])
		}
	}

	logger.Log.Info().Int("documents", len(validDocs)).Msg("Updating agent knowledge base")
	if err := r.kb.UpdateAgentKnowledgeBase(ctx, validDocs); err != nil {
		logger.Log.Error().Err(err).Msg("Failed to update agent configuration")
	}

	for _, id := range idsToDelete {
		if err := r.kb.DeleteDocument(ctx, id); err != nil {
			logger.Log.Error().Err(err).Str("doc_id", id).Msg("Failed to delete document")
			continue
		}
		logger.Log.Info().Str("doc_id", id).Msg("Deleted document")
		result.Deleted++
	}

	logger.Log.Info().
		Int("uploaded", result.Uploaded).
		Int("kept", result.Kept).
		Int("deleted", result.Deleted).
		Int("failed", result.Failed).
		Msg("Sync finished")
	return result, nil
}

// upload downloads the object to a scratch file and registers it as a new
// knowledge-base document. The scratch file is removed on every exit path.
func (r *Reconciler) upload(ctx context.Context, bucket, objectName string) (string, error) {
	tmp, err := os.CreateTemp(r.scratchDir, "xikb-upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create scratch file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := r.store.DownloadObject(ctx, bucket, objectName, tmpPath); err != nil {
		return "", fmt.Errorf("failed to download %s: %w", objectName, err)
	}
	return r.kb.UploadDocument(ctx, path.Base(objectName), tmpPath)
}
