// Package firestore stores the catalog in Cloud Firestore, one Firestore
// collection per catalog collection.
package firestore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"rental-quote-backend/internal/domain"
	"rental-quote-backend/internal/logger"
	"rental-quote-backend/internal/repository"
)

const (
	syncRunsCollection = "sync_runs"

	// Bookkeeping fields stripped from payloads on read.
	fieldPosition  = "_position"
	fieldUpdatedOn = "_updated_on"
)

type Store struct {
	client *firestore.Client
	repository.CatalogRepository
	repository.SyncRunRepository
}

// NewStore connects to Firestore through the Firebase Admin SDK.
func NewStore(ctx context.Context, projectID, credentialsFile string) (*Store, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return NewStoreWithClient(client), nil
}

func NewStoreWithClient(client *firestore.Client) *Store {
	return &Store{
		client:            client,
		CatalogRepository: &catalogRepository{client: client},
		SyncRunRepository: &syncRunRepository{client: client},
	}
}

func (s *Store) Close() error {
	return s.client.Close()
}

type catalogRepository struct {
	client *firestore.Client
}

// ReplaceCollection runs in one transaction so readers see either the old or
// the new collection.
func (r *catalogRepository) ReplaceCollection(ctx context.Context, collection domain.Collection, records []domain.CatalogRecord) (repository.ReplaceStats, error) {
	logger.EnterMethod("firestore.ReplaceCollection", "collection", collection, "records", len(records))
	coll := r.client.Collection(string(collection))
	now := time.Now().UTC()

	docs := make(map[string]map[string]any, len(records))
	order := make([]string, 0, len(records))
	for i, rec := range records {
		data, err := toMap(rec)
		if err != nil {
			return repository.ReplaceStats{}, fmt.Errorf("marshal %s/%s: %w", collection, rec.RecordID(), err)
		}
		data[fieldPosition] = i
		data[fieldUpdatedOn] = now
		docs[rec.RecordID()] = data
		order = append(order, rec.RecordID())
	}

	var stats repository.ReplaceStats
	logger.DatabaseCall("REPLACE", string(collection), "records", len(records))
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		stats = repository.ReplaceStats{}
		existing, err := tx.DocumentRefs(coll).GetAll()
		if err != nil {
			return err
		}
		for _, ref := range existing {
			if _, keep := docs[ref.ID]; keep {
				continue
			}
			if err := tx.Delete(ref); err != nil {
				return err
			}
			stats.Deleted++
		}
		for _, id := range order {
			if err := tx.Set(coll.Doc(id), docs[id]); err != nil {
				return err
			}
			stats.Upserted++
		}
		return nil
	})
	logger.DatabaseResult("REPLACE", int64(stats.Upserted+stats.Deleted), err, "collection", collection)
	if err != nil {
		logger.ExitMethodWithError("firestore.ReplaceCollection", err, "collection", collection)
		return repository.ReplaceStats{}, err
	}
	logger.ExitMethod("firestore.ReplaceCollection", "upserted", stats.Upserted, "deleted", stats.Deleted)
	return stats, nil
}

func (r *catalogRepository) ListCollection(ctx context.Context, collection domain.Collection) ([]json.RawMessage, error) {
	logger.DatabaseCall("SELECT", string(collection))
	snaps, err := r.client.Collection(string(collection)).OrderBy(fieldPosition, firestore.Asc).Documents(ctx).GetAll()
	logger.DatabaseResult("SELECT", int64(len(snaps)), err, "collection", collection)
	if err != nil {
		return nil, err
	}

	payloads := make([]json.RawMessage, 0, len(snaps))
	for _, snap := range snaps {
		data := snap.Data()
		delete(data, fieldPosition)
		delete(data, fieldUpdatedOn)
		b, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode %s/%s: %w", collection, snap.Ref.ID, err)
		}
		payloads = append(payloads, b)
	}
	return payloads, nil
}

// UpsertConfig replaces the top-level fields named in patch and leaves the
// others untouched.
func (r *catalogRepository) UpsertConfig(ctx context.Context, id string, patch map[string]any) error {
	data, err := toMap(patch)
	if err != nil {
		return err
	}
	data["updated_on"] = time.Now().UTC()

	paths := make([]firestore.FieldPath, 0, len(data))
	for k := range data {
		paths = append(paths, firestore.FieldPath{k})
	}

	logger.DatabaseCall("UPSERT", string(domain.CollectionConfig), "id", id)
	_, err = r.client.Collection(string(domain.CollectionConfig)).Doc(id).Set(ctx, data, firestore.Merge(paths...))
	logger.DatabaseResult("UPSERT", 1, err, "id", id)
	return err
}

func (r *catalogRepository) GetConfig(ctx context.Context, id string) (*domain.ConfigDocument, error) {
	snap, err := r.client.Collection(string(domain.CollectionConfig)).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var doc domain.ConfigDocument
	if err := fromMap(snap.Data(), &doc); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", id, err)
	}
	doc.ID = id
	if doc.UpdatedOn.IsZero() {
		doc.UpdatedOn = snap.UpdateTime
	}
	return &doc, nil
}

type syncRunRepository struct {
	client *firestore.Client
}

func (r *syncRunRepository) RecordSyncRun(ctx context.Context, run *domain.SyncRun) error {
	errs := run.Errors
	if errs == nil {
		errs = []string{}
	}
	logger.DatabaseCall("INSERT", syncRunsCollection, "runID", run.RunID, "state", run.State)
	_, err := r.client.Collection(syncRunsCollection).Doc(run.RunID).Set(ctx, map[string]any{
		"run_id":      run.RunID,
		"state":       string(run.State),
		"started_at":  run.StartedAt,
		"finished_at": run.FinishedAt,
		"errors":      errs,
	})
	logger.DatabaseResult("INSERT", 1, err, "runID", run.RunID)
	return err
}

func (r *syncRunRepository) LastSuccessfulRun(ctx context.Context) (*domain.SyncRun, error) {
	states := []string{string(domain.SyncStateSucceeded), string(domain.SyncStatePartiallyFailed)}
	snaps, err := r.client.Collection(syncRunsCollection).
		Where("state", "in", states).
		OrderBy("finished_at", firestore.Desc).
		Limit(1).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, nil
	}

	var run domain.SyncRun
	if err := fromMap(snaps[0].Data(), &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// toMap round-trips v through JSON so stored documents use the same field
// names and decimal encoding as the Postgres payloads.
func toMap(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	m := map[string]any{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func fromMap(m map[string]any, v any) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
