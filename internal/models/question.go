package models

// Question is an A/B pair from the question pool.
type Question struct {
	A   string `json:"a"`
	B   string `json:"b"`
	Tag string `json:"tag,omitempty"`
}
