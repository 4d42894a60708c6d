package sellfox

import "encoding/json"

// Envelope is the common response wrapper of every business endpoint.
type Envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// Page is the data payload of a paginated endpoint.
type Page[T any] struct {
	Rows      []T `json:"rows"`
	TotalPage Int `json:"totalPage"`
	TotalSize Int `json:"totalSize"`
}
