// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package reembed

import (
	"context"

	"github.com/drorzp/justel-pipeline/core"
	"github.com/drorzp/justel-pipeline/storage"
)

const (
	// DefaultBatchSize is the default number of records to fetch in each batch
	DefaultBatchSize = 100
)

// RecordIterator pages over all content records in ID order.
type RecordIterator struct {
	repo      storage.ContentRepository
	batchSize int
}

// NewRecordIterator creates a new record iterator.
// batchSize: number of records to fetch in each batch (defaults when <= 0)
func NewRecordIterator(repo storage.ContentRepository, batchSize int) *RecordIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &RecordIterator{
		repo:      repo,
		batchSize: batchSize,
	}
}

// ForEach calls fn with consecutive batches of records.
// Iteration stops on the first error from fn or when all records are seen.
// Context cancellation is checked between batches.
func (it *RecordIterator) ForEach(ctx context.Context, fn func([]*core.ContentRecord) error) error {
	var afterID uint64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		records, err := it.repo.ListContent(ctx, afterID, it.batchSize)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}

		if err := fn(records); err != nil {
			return err
		}

		afterID = records[len(records)-1].ID
		if len(records) < it.batchSize {
			return nil
		}
	}
}
