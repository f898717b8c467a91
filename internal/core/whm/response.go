// Package whm normalizes control-panel API responses.
// This is part of the Functional Core - all functions are pure with no I/O.
//
// The remote API answers the same logical outcome with several JSON shapes.
// Normalize maps each recognized shape onto Response, the single form the
// provisioning steps consume; anything else becomes an explicit failure.
package whm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// Response
// =============================================================================

// Shape names the raw body variant a response was decoded from.
type Shape string

const (
	ShapeNone       Shape = ""            // no body was decoded (transport or HTTP failure)
	ShapeMetadata   Shape = "metadata"    // {metadata:{result, reason}, data}
	ShapeStatus     Shape = "status"      // {status, statusmsg}
	ShapeResultList Shape = "result_list" // {result:[{status, statusmsg}]}
	ShapeList       Shape = "list"        // {package:[...]} and similar
	ShapeUnknown    Shape = "unknown"     // valid JSON, unrecognized structure
	ShapeNotJSON    Shape = "not_json"
)

// FailureKind classifies why a call failed.
type FailureKind string

const (
	FailureNone      FailureKind = ""
	FailureRemote    FailureKind = "remote"    // the API answered and said no
	FailureHTTP      FailureKind = "http"      // non-2xx status
	FailureTransport FailureKind = "transport" // refused, reset, DNS
	FailureTimeout   FailureKind = "timeout"
	FailureProtocol  FailureKind = "protocol" // body not JSON or shape unknown
)

// Response is the canonical post-normalization envelope.
type Response struct {
	Success bool
	Reason  string
	Data    json.RawMessage
	Shape   Shape
	Failure FailureKind
}

// Failed builds a failed response.
func Failed(kind FailureKind, reason string) Response {
	return Response{Success: false, Reason: reason, Failure: kind}
}

const defaultRemoteReason = "control panel reported failure"

// =============================================================================
// Normalization
// =============================================================================

// listKeys are the top-level keys of list payloads returned by read-only endpoints.
var listKeys = []string{"package", "pkg", "acct", "domains"}

// Normalize decodes a response body into the canonical Response.
func Normalize(body []byte) Response {
	trimmed := bytes.TrimSpace(body)
	if !json.Valid(trimmed) {
		resp := Failed(FailureProtocol, "control panel returned a non-JSON response")
		resp.Shape = ShapeNotJSON
		return resp
	}
	return classify(trimmed).normalize()
}

// rawBody is the closed set of recognized body variants.
type rawBody interface {
	normalize() Response
}

type metadataBody struct {
	Metadata struct {
		Result flexStatus `json:"result"`
		Reason string     `json:"reason"`
	} `json:"metadata"`
	Data json.RawMessage `json:"data"`
}

type statusBody struct {
	Status    flexStatus `json:"status"`
	StatusMsg string     `json:"statusmsg"`
	raw       json.RawMessage
}

type resultEntry struct {
	Status    flexStatus `json:"status"`
	StatusMsg string     `json:"statusmsg"`
}

type resultListBody struct {
	Result []json.RawMessage `json:"result"`
}

type listBody struct {
	key   string
	items json.RawMessage
	err   string
}

type unknownBody struct {
	keys []string
}

// classify picks the variant matching the top-level structure. Decoding
// errors inside a recognized key fall through to unknownBody.
func classify(body []byte) rawBody {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return unknownBody{}
	}

	if _, ok := top["metadata"]; ok {
		var b metadataBody
		if err := json.Unmarshal(body, &b); err == nil {
			return b
		}
		return unknownBody{keys: keysOf(top)}
	}

	if raw, ok := top["result"]; ok && isArray(raw) {
		var b resultListBody
		if err := json.Unmarshal(body, &b); err == nil {
			return b
		}
		return unknownBody{keys: keysOf(top)}
	}

	if _, ok := top["status"]; ok {
		var b statusBody
		if err := json.Unmarshal(body, &b); err == nil {
			b.raw = body
			return b
		}
		return unknownBody{keys: keysOf(top)}
	}

	for _, k := range listKeys {
		if raw, ok := top[k]; ok && isArray(raw) {
			b := listBody{key: k, items: raw}
			if e, ok := top["error"]; ok {
				_ = json.Unmarshal(e, &b.err)
			}
			return b
		}
	}

	return unknownBody{keys: keysOf(top)}
}

func (b metadataBody) normalize() Response {
	if b.Metadata.Result.ok {
		return Response{Success: true, Reason: b.Metadata.Reason, Data: b.Data, Shape: ShapeMetadata}
	}
	return remoteFailure(ShapeMetadata, b.Metadata.Reason)
}

func (b statusBody) normalize() Response {
	if b.Status.ok {
		return Response{Success: true, Reason: b.StatusMsg, Data: b.raw, Shape: ShapeStatus}
	}
	return remoteFailure(ShapeStatus, b.StatusMsg)
}

func (b resultListBody) normalize() Response {
	if len(b.Result) == 0 {
		return remoteFailure(ShapeResultList, "control panel returned an empty result list")
	}
	var first resultEntry
	for i, raw := range b.Result {
		var e resultEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			return unknownBody{keys: []string{"result"}}.normalize()
		}
		if !e.Status.ok {
			return remoteFailure(ShapeResultList, e.StatusMsg)
		}
		if i == 0 {
			first = e
		}
	}
	return Response{Success: true, Reason: first.StatusMsg, Data: b.Result[0], Shape: ShapeResultList}
}

func (b listBody) normalize() Response {
	if b.err != "" {
		return remoteFailure(ShapeList, b.err)
	}
	return Response{Success: true, Reason: b.key, Data: b.items, Shape: ShapeList}
}

func (b unknownBody) normalize() Response {
	reason := "unrecognized control panel response"
	if len(b.keys) > 0 {
		reason = fmt.Sprintf("%s (keys: %s)", reason, strings.Join(b.keys, ","))
	}
	resp := Failed(FailureProtocol, reason)
	resp.Shape = ShapeUnknown
	return resp
}

func remoteFailure(shape Shape, reason string) Response {
	if strings.TrimSpace(reason) == "" {
		reason = defaultRemoteReason
	}
	resp := Failed(FailureRemote, reason)
	resp.Shape = shape
	return resp
}

// =============================================================================
// Helpers
// =============================================================================

// flexStatus accepts the status encodings seen in the wild: 1/0, "1"/"0", true/false.
type flexStatus struct {
	ok bool
}

func (s *flexStatus) UnmarshalJSON(data []byte) error {
	switch strings.Trim(string(data), `"`) {
	case "1", "true":
		s.ok = true
		return nil
	case "0", "false", "", "null":
		s.ok = false
		return nil
	default:
		return fmt.Errorf("unexpected status value %s", data)
	}
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

func keysOf(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
