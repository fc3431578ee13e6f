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

import (
	"fmt"
	"regexp"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateIdentifier checks that name is safe to interpolate into SQL as a
// schema, table or procedure name. No other dynamic SQL is built.
func ValidateIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return nil
}

// ValidateDocument validates a LegalDocument according to domain rules.
//
// Validation rules:
//   - DocumentNumber must not be empty
//   - at least one article must carry content
//   - every article has a number, unique within the document
//
// NOT validated:
//   - Title, Language and DocumentType (minimal documents may omit them)
//   - footnote consistency (checked on transformed output instead)
func ValidateDocument(doc *LegalDocument) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if doc.Metadata.DocumentNumber == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrMissingDocumentNumber)
	}

	articles := doc.Articles()
	if len(articles) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrNoArticles)
	}

	seen := make(map[string]struct{}, len(articles))
	for _, a := range articles {
		if a.Number == "" {
			return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrMissingArticleNumber)
		}
		if _, dup := seen[a.Number]; dup {
			return fmt.Errorf("%w: %w: %s", ErrInvalidDocument, ErrDuplicateArticle, a.Number)
		}
		seen[a.Number] = struct{}{}
	}

	return nil
}
