package finding

import "encoding/json"

// RawEvidence is an evidence payload reloaded from storage. The typed
// structure is not reconstructed; stored findings are read-only.
type RawEvidence json.RawMessage

func (RawEvidence) EvidenceKind() string { return "stored" }

func (r RawEvidence) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return []byte(r), nil
}

// UnmarshalJSON decodes a stored finding, keeping the evidence opaque.
func (f *Finding) UnmarshalJSON(data []byte) error {
	type alias Finding
	aux := struct {
		*alias
		Evidence json.RawMessage `json:"evidence,omitempty"`
	}{alias: (*alias)(f)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.Evidence) > 0 && string(aux.Evidence) != "null" {
		f.Evidence = RawEvidence(aux.Evidence)
	}
	return nil
}
