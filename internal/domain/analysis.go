package domain

import (
	"bytes"
	"encoding/json"
)

// AnalysisParseErrorMessage is stored in the sentinel object when the worker
// delivers an analysis payload that is not valid JSON.
const AnalysisParseErrorMessage = "failed to parse analysis JSON"

// AnalysisKind tags the shape a stored analysis blob decodes into. The
// worker's schema has evolved, so two incompatible shapes coexist in the
// wild alongside error sentinels written by this service.
type AnalysisKind string

const (
	// AnalysisKindProfile is the current worker shape:
	// summary / customerProfile / performance / improvementPoints.
	AnalysisKindProfile AnalysisKind = "profile"

	// AnalysisKindFeedback is the older worker shape:
	// speakerIdentification / crucialMoments / overallFeedback.
	AnalysisKindFeedback AnalysisKind = "feedback"

	// AnalysisKindError marks a sentinel written when a payload could not
	// be parsed or a task timed out.
	AnalysisKindError AnalysisKind = "error"

	// AnalysisKindUnknown is anything else; callers should treat the raw
	// JSON as opaque.
	AnalysisKindUnknown AnalysisKind = "unknown"
)

// StageAnalysis scores a single stage of the call.
type StageAnalysis struct {
	Score                 float64 `json:"score"`
	Feedback              string  `json:"feedback"`
	ImprovementSuggestion string  `json:"improvementSuggestion"`
}

// CustomerProfile describes the customer as inferred from the call.
type CustomerProfile struct {
	Name               string `json:"name"`
	Profile            string `json:"profile"`
	CommunicationStyle string `json:"communicationStyle"`
}

// ImprovementPoint pins a concrete line the salesperson could have handled
// better.
type ImprovementPoint struct {
	SalespersonLine string `json:"salespersonLine"`
	Context         string `json:"context"`
	Suggestion      string `json:"suggestion"`
}

// ProfileAnalysis is the current worker-produced analysis shape.
type ProfileAnalysis struct {
	Summary         string          `json:"summary"`
	CustomerProfile CustomerProfile `json:"customerProfile"`
	Performance     struct {
		OverallScore float64                  `json:"overallScore"`
		Stages       map[string]StageAnalysis `json:"stages"`
	} `json:"performance"`
	ImprovementPoints []ImprovementPoint `json:"improvementPoints"`
}

// CrucialMoment highlights one passage of the call in the older shape.
type CrucialMoment struct {
	MomentTitle     string `json:"momentTitle"`
	SalespersonLine string `json:"salespersonLine"`
	Problem         string `json:"problem"`
	Improvement     string `json:"improvement"`
}

// FeedbackAnalysis is the older worker-produced analysis shape.
type FeedbackAnalysis struct {
	SpeakerIdentification map[string]string `json:"speakerIdentification"`
	CrucialMoments        []CrucialMoment   `json:"crucialMoments"`
	OverallFeedback       struct {
		Summary string `json:"summary"`
	} `json:"overallFeedback"`
}

// AnalysisError is the sentinel written when a worker payload could not be
// parsed. Raw preserves the original string for later inspection.
type AnalysisError struct {
	Error string `json:"error"`
	Raw   string `json:"raw,omitempty"`
}

// AnalysisView is the tagged result of decoding a stored analysis blob.
// Exactly one of the pointer fields is set for the matching Kind.
type AnalysisView struct {
	Kind     AnalysisKind
	Profile  *ProfileAnalysis
	Feedback *FeedbackAnalysis
	Error    *AnalysisError
}

// NormalizeAnalysis turns a worker-delivered analysis string into valid JSON
// for storage. Valid JSON objects and arrays pass through untouched; anything
// else becomes an error sentinel carrying the original string, so the
// pipeline never blocks on a malformed payload.
func NormalizeAnalysis(raw string) json.RawMessage {
	trimmed := bytes.TrimSpace([]byte(raw))
	if json.Valid(trimmed) && len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return json.RawMessage(trimmed)
	}

	sentinel, err := json.Marshal(AnalysisError{
		Error: AnalysisParseErrorMessage,
		Raw:   raw,
	})
	if err != nil {
		// Marshal of a two-string struct cannot fail; keep the compiler
		// honest with a fixed fallback.
		return json.RawMessage(`{"error":"` + AnalysisParseErrorMessage + `"}`)
	}
	return sentinel
}

// MergeAnalysisError sets an "error" key on an existing analysis object,
// preserving any prior keys. A missing or non-object analysis is replaced by
// a bare sentinel. Used by the stale sweep to record why a task was failed.
func MergeAnalysisError(existing json.RawMessage, message string) json.RawMessage {
	merged := map[string]json.RawMessage{}
	if len(existing) > 0 {
		// A decode failure leaves merged empty, which degrades to the
		// bare sentinel below.
		_ = json.Unmarshal(existing, &merged)
	}

	encoded, err := json.Marshal(message)
	if err != nil {
		encoded = []byte(`"` + AnalysisParseErrorMessage + `"`)
	}
	merged["error"] = encoded

	out, err := json.Marshal(merged)
	if err != nil {
		return json.RawMessage(`{"error":` + string(encoded) + `}`)
	}
	return out
}

// ParseAnalysis decodes a stored blob into a tagged view, validating shape
// on read instead of trusting whatever was written. Unknown shapes come back
// as AnalysisKindUnknown with all pointers nil.
func ParseAnalysis(raw json.RawMessage) AnalysisView {
	if len(raw) == 0 {
		return AnalysisView{Kind: AnalysisKindUnknown}
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return AnalysisView{Kind: AnalysisKindUnknown}
	}

	if _, ok := probe["error"]; ok {
		var sentinel AnalysisError
		if err := json.Unmarshal(raw, &sentinel); err == nil && sentinel.Error != "" {
			return AnalysisView{Kind: AnalysisKindError, Error: &sentinel}
		}
	}

	if _, ok := probe["customerProfile"]; ok {
		var profile ProfileAnalysis
		if err := json.Unmarshal(raw, &profile); err == nil {
			return AnalysisView{Kind: AnalysisKindProfile, Profile: &profile}
		}
	}

	if _, ok := probe["overallFeedback"]; ok {
		var feedback FeedbackAnalysis
		if err := json.Unmarshal(raw, &feedback); err == nil {
			return AnalysisView{Kind: AnalysisKindFeedback, Feedback: &feedback}
		}
	}

	return AnalysisView{Kind: AnalysisKindUnknown}
}
