package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAnalysis(t *testing.T) {
	t.Parallel()

	t.Run("valid object passes through", func(t *testing.T) {
		t.Parallel()
		raw := `{"summary":"boa chamada"}`
		assert.JSONEq(t, raw, string(NormalizeAnalysis(raw)))
	})

	t.Run("valid array passes through", func(t *testing.T) {
		t.Parallel()
		raw := `[{"score":8}]`
		assert.JSONEq(t, raw, string(NormalizeAnalysis(raw)))
	})

	t.Run("malformed payload becomes a sentinel with the raw preserved", func(t *testing.T) {
		t.Parallel()
		got := NormalizeAnalysis(`{"summary": truncated`)

		var sentinel AnalysisError
		require.NoError(t, json.Unmarshal(got, &sentinel))
		assert.Equal(t, AnalysisParseErrorMessage, sentinel.Error)
		assert.Equal(t, `{"summary": truncated`, sentinel.Raw)
	})

	t.Run("bare scalar becomes a sentinel", func(t *testing.T) {
		t.Parallel()
		got := NormalizeAnalysis(`42`)

		var sentinel AnalysisError
		require.NoError(t, json.Unmarshal(got, &sentinel))
		assert.Equal(t, AnalysisParseErrorMessage, sentinel.Error)
	})
}

func TestMergeAnalysisError(t *testing.T) {
	t.Parallel()

	t.Run("keeps existing keys", func(t *testing.T) {
		t.Parallel()
		existing := json.RawMessage(`{"partial":"transcription done"}`)
		got := MergeAnalysisError(existing, "task timed out")

		var merged map[string]string
		require.NoError(t, json.Unmarshal(got, &merged))
		assert.Equal(t, "transcription done", merged["partial"])
		assert.Equal(t, "task timed out", merged["error"])
	})

	t.Run("nil analysis becomes a bare sentinel", func(t *testing.T) {
		t.Parallel()
		got := MergeAnalysisError(nil, "task timed out")
		assert.JSONEq(t, `{"error":"task timed out"}`, string(got))
	})

	t.Run("non-object analysis is replaced", func(t *testing.T) {
		t.Parallel()
		got := MergeAnalysisError(json.RawMessage(`[1,2,3]`), "task timed out")
		assert.JSONEq(t, `{"error":"task timed out"}`, string(got))
	})
}

func TestParseAnalysis(t *testing.T) {
	t.Parallel()

	t.Run("profile shape", func(t *testing.T) {
		t.Parallel()
		raw := json.RawMessage(`{
			"summary": "Chamada objetiva",
			"customerProfile": {"name": "João", "profile": "analítico", "communicationStyle": "direto"},
			"performance": {"overallScore": 7.5, "stages": {"abertura": {"score": 8, "feedback": "boa", "improvementSuggestion": ""}}},
			"improvementPoints": []
		}`)

		view := ParseAnalysis(raw)
		require.Equal(t, AnalysisKindProfile, view.Kind)
		require.NotNil(t, view.Profile)
		assert.Equal(t, "João", view.Profile.CustomerProfile.Name)
		assert.InDelta(t, 7.5, view.Profile.Performance.OverallScore, 0.001)
	})

	t.Run("feedback shape", func(t *testing.T) {
		t.Parallel()
		raw := json.RawMessage(`{
			"speakerIdentification": {"SPEAKER_00": "vendedora"},
			"crucialMoments": [{"momentTitle": "Objeção de preço", "salespersonLine": "...", "problem": "...", "improvement": "..."}],
			"overallFeedback": {"summary": "Precisa melhorar o fechamento"}
		}`)

		view := ParseAnalysis(raw)
		require.Equal(t, AnalysisKindFeedback, view.Kind)
		require.NotNil(t, view.Feedback)
		assert.Equal(t, "Precisa melhorar o fechamento", view.Feedback.OverallFeedback.Summary)
		assert.Len(t, view.Feedback.CrucialMoments, 1)
	})

	t.Run("error sentinel", func(t *testing.T) {
		t.Parallel()
		view := ParseAnalysis(json.RawMessage(`{"error":"task timed out","raw":"..."}`))
		require.Equal(t, AnalysisKindError, view.Kind)
		require.NotNil(t, view.Error)
		assert.Equal(t, "task timed out", view.Error.Error)
	})

	t.Run("unknown shapes stay opaque", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, AnalysisKindUnknown, ParseAnalysis(nil).Kind)
		assert.Equal(t, AnalysisKindUnknown, ParseAnalysis(json.RawMessage(`[1,2]`)).Kind)
		assert.Equal(t, AnalysisKindUnknown, ParseAnalysis(json.RawMessage(`{"foo":"bar"}`)).Kind)
	})
}
