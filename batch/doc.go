// Package batch drives resumable ingestion of record archives stored in an
// object store.
//
// Archives are listed, filtered by extension and processed in ascending key
// order. Each archive is downloaded and extracted into a scratch directory,
// and its records are handed to a RecordProcessor on a bounded worker pool.
// A failing record is moved to the error directory next to an
// error_summary.json file and never aborts its archive.
//
// Progress is kept in a BatchCheckpoint. Transitions are computed by the
// pure Apply function and persisted atomically by a CheckpointStore after
// every archive and before its scratch directory is removed, so an
// interrupted run resumes at the first archive whose key is greater than
// lastProcessedFile.
//
// Example:
//
//	store, _ := s3.New(ctx, s3.Config{Bucket: "justel-archives"})
//	checkpoints := batch.NewFileCheckpointStore("data/checkpoint.json")
//	ctrl, _ := batch.NewController(store, processor, checkpoints,
//		batch.WithWorkers(8),
//		batch.WithErrorDir("data/errors"),
//	)
//	summary, err := ctrl.Run(ctx)
package batch
