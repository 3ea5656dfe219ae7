package adapter

import (
	"encoding/json"
)

// JSON abstracts the codec used for cache entries and broadcast payloads so
// tests can inject marshal failures.
//
//go:generate mockgen -source=json.go -destination=../mocks/json.go -package=mocks -mock_names=JSON=MockJSON
type JSON interface {
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error
}

// NewJSON returns the encoding/json-backed codec.
func NewJSON() JSON {
	return &RealJSON{}
}

// RealJSON implements JSON with the standard library.
type RealJSON struct{}

func (j *RealJSON) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (j *RealJSON) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}
