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


// Package storage defines the three stores the pipeline converges.
//
// The relational ContentRepository is the writer-of-record: ingestion writes
// laws and article content to it, the upsert layer snapshots it at run
// start and restores or repairs records in place. The DocumentStore and
// VectorStore are projections of it and are only ever written from it.
//
// Implementations:
//
//   - sqlstore: ContentRepository on gorm (MySQL, PostgreSQL or SQLite)
//   - mongo: DocumentStore on MongoDB
//   - qdrant: VectorStore on Qdrant
//   - badger: DocumentStore and VectorStore on an embedded BadgerDB, for
//     local runs and tests
//
// # Usage
//
//	repo, err := sqlstore.Open(ctx, "sqlite:///var/lib/justel/content.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer repo.Close()
//
//	backend, err := badger.OpenBackend("", true)
//	docs := badger.NewDocumentStore(backend)
//	vectors := badger.NewVectorStore(backend)
//
// # Thread Safety
//
// All implementations must be safe for concurrent use from multiple
// goroutines.
//
// # Context Support
//
// Every method that touches the network accepts a context.Context for
// cancellation and timeouts.
package storage
