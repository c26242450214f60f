package orchestrator

import "encoding/json"

// mergeResponse overlays `_response: parentResponse` onto body, per spec
// §4.4's payload assembly ("inject _response = parent.response"). Both
// arguments are expected to be JSON objects (or nil/empty); a non-object
// body is returned unchanged rather than silently dropping data.
func mergeResponse(body, parentResponse []byte) []byte {
	var obj map[string]json.RawMessage
	if len(body) > 0 {
		if err := json.Unmarshal(body, &obj); err != nil {
			return body
		}
	}
	if obj == nil {
		obj = map[string]json.RawMessage{}
	}
	obj["_response"] = parentResponse
	merged, err := json.Marshal(obj)
	if err != nil {
		return body
	}
	return merged
}
