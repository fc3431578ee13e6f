package qdrant

import (
	"testing"
	"time"

	"github.com/drorzp/justel-pipeline/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointStruct(t *testing.T) {
	p := &core.VectorPoint{
		ID:     42,
		Vector: []float32{0.6, 0.8},
		Payload: core.VectorPayload{
			Text:           "Article 1",
			TextHash:       core.Hash("Article 1"),
			DocumentNumber: "D1",
			ArticleNumber:  "1",
			UpdatedAt:      time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		},
	}

	ps, err := pointStruct(p)
	require.NoError(t, err)

	assert.Equal(t, uint64(42), ps.GetId().GetNum())
	assert.Equal(t, core.Hash("Article 1"), ps.GetPayload()[hashField].GetStringValue())
	assert.Equal(t, "D1", ps.GetPayload()["document_number"].GetStringValue())
	assert.Equal(t, "2024-03-01T12:00:00Z", ps.GetPayload()["updated_at"].GetStringValue())
	assert.Equal(t, []float32{0.6, 0.8}, ps.GetVectors().GetVector().GetDense().GetData())
}
