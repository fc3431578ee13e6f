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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidDocument indicates a LegalDocument failed validation.
	ErrInvalidDocument = errors.New("invalid legal document")

	// ErrMissingDocumentNumber indicates the document number is empty.
	ErrMissingDocumentNumber = errors.New("document number cannot be empty")

	// ErrNoArticles indicates a document carries no article content.
	ErrNoArticles = errors.New("document has no articles")

	// ErrMissingArticleNumber indicates an article without a number.
	ErrMissingArticleNumber = errors.New("article number cannot be empty")

	// ErrDuplicateArticle indicates two articles share a number.
	ErrDuplicateArticle = errors.New("duplicate article number")

	// ErrInvalidIdentifier indicates a SQL identifier failed validation.
	ErrInvalidIdentifier = errors.New("invalid identifier")
)
