package badger

import (
	"encoding/binary"

	"github.com/drorzp/justel-pipeline/core"
)

// Key prefixes for different data types
const (
	articleDocPrefix = "artdoc:"
	lawDocPrefix     = "lawdoc:"
	vectorPrefix     = "vecpt:"
	vectorDimKey     = "vecdim"
)

// makeArticleKey generates a key for an article document.
// Format: prefix:document\x00article
func makeArticleKey(key core.RecordKey) []byte {
	buf := make([]byte, 0, len(articleDocPrefix)+len(key.DocumentNumber)+1+len(key.ArticleNumber))
	buf = append(buf, articleDocPrefix...)
	buf = append(buf, key.DocumentNumber...)
	buf = append(buf, 0)
	buf = append(buf, key.ArticleNumber...)
	return buf
}

// makeLawKey generates a key for a law document.
func makeLawKey(documentNumber string) []byte {
	return append([]byte(lawDocPrefix), documentNumber...)
}

// makeVectorKey generates a key for a vector point.
// Written in BigEndian order so lexicographic sort follows the id.
func makeVectorKey(id uint64) []byte {
	buf := make([]byte, len(vectorPrefix)+8)
	offset := copy(buf, vectorPrefix)
	binary.BigEndian.PutUint64(buf[offset:], id)
	return buf
}
