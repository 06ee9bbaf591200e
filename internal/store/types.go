package store

import "github.com/roach88/tensorgen/internal/codegen"

// Run status values.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Run is one recorded generation of one graph.
type Run struct {
	ID               string        `json:"id"`
	Seq              int64         `json:"seq"`
	Graph            string        `json:"graph"`
	GraphHash        string        `json:"graph_hash"`
	Status           string        `json:"status"`
	ErrorCode        string        `json:"error_code,omitempty"`
	ErrorMessage     string        `json:"error_message,omitempty"`
	Stats            codegen.Stats `json:"stats"`
	GeneratorVersion string        `json:"generator_version"`
	IRVersion        string        `json:"ir_version"`
}
