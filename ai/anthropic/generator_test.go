package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/drorzp/justel-pipeline/ai"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHost = "http://anthropic.test/v1"

func testConfig(mock *httpmock.MockTransport) *ai.Config {
	return ai.NewConfig(
		ai.WithLargeProvider(ai.ProviderAnthropic),
		ai.WithLargeModel("claude-sonnet-4-5"),
		ai.WithLargeAPIKey("ak-test"),
		ai.WithLargeHost(testHost),
		ai.WithHTTPClient(&http.Client{Transport: mock}),
	)
}

func TestGenerator_Generate(t *testing.T) {
	mock := httpmock.NewMockTransport()
	var captured map[string]any
	mock.RegisterResponder(http.MethodPost, testHost+"/messages",
		func(req *http.Request) (*http.Response, error) {
			if got := req.Header.Get("x-api-key"); got != "ak-test" {
				return httpmock.NewStringResponse(http.StatusUnauthorized, `{"error":{"message":"bad key"}}`), nil
			}
			if err := json.NewDecoder(req.Body).Decode(&captured); err != nil {
				return nil, err
			}
			return httpmock.NewJsonResponse(http.StatusOK, map[string]any{
				"id":          "msg_1",
				"type":        "message",
				"role":        "assistant",
				"model":       "claude-sonnet-4-5",
				"stop_reason": "end_turn",
				"content":     []map[string]any{{"type": "text", "text": "<article class=\"legal-article\"></article>"}},
				"usage":       map[string]any{"input_tokens": 10, "output_tokens": 5},
			})
		})

	gen, err := NewGenerator(testConfig(mock))
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-5", gen.Model())

	out, err := gen.Generate(context.Background(), ai.Prompt{System: "rules", User: "markup", MaxTokens: 9000})
	require.NoError(t, err)
	assert.Equal(t, `<article class="legal-article"></article>`, out)

	require.NotNil(t, captured)
	assert.Equal(t, "rules", captured["system"])
	assert.EqualValues(t, 9000, captured["max_tokens"])
}

func TestGenerator_StatusError(t *testing.T) {
	mock := httpmock.NewMockTransport()
	mock.RegisterResponder(http.MethodPost, testHost+"/messages",
		httpmock.NewStringResponder(529, `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`))

	gen, err := NewGenerator(testConfig(mock))
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), ai.Prompt{System: "s", User: "u"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "529")
}

func TestGenerator_MaxTokensStop(t *testing.T) {
	mock := httpmock.NewMockTransport()
	mock.RegisterResponder(http.MethodPost, testHost+"/messages",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{
			"id":          "msg_2",
			"type":        "message",
			"role":        "assistant",
			"model":       "claude-sonnet-4-5",
			"stop_reason": "max_tokens",
			"content":     []map[string]any{{"type": "text", "text": "<article class=\"legal-article\"><div>"}},
			"usage":       map[string]any{"input_tokens": 10, "output_tokens": 16},
		}))

	gen, err := NewGenerator(testConfig(mock))
	require.NoError(t, err)

	out, err := gen.Generate(context.Background(), ai.Prompt{System: "s", User: "u", MaxTokens: 16})
	assert.ErrorIs(t, err, ai.ErrOutputTruncated)
	assert.Empty(t, out)
}

func TestNewGenerator_WrongProvider(t *testing.T) {
	cfg := ai.NewConfig()
	_, err := NewGenerator(cfg)
	assert.ErrorIs(t, err, ai.ErrNoLargeBackend)
}
