package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/tensorgen/internal/compiler"
	"github.com/roach88/tensorgen/internal/ir"
)

// LoadMode controls how errors are handled during spec loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the graphs loaded from a directory.
type LoadResult struct {
	Graphs    []*ir.Graph
	FileCount int // Number of CUE files found
}

// LoadError represents an error that occurred during spec loading.
type LoadError struct {
	Code    string
	Graph   string // graph the error belongs to, if any
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.Graph != "" {
		msg = fmt.Sprintf("graph %s: %s", e.Graph, e.Message)
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// LoadGraphs loads and compiles every graph in the CUE package at dir.
//
// A nil result means the directory itself could not be loaded. Otherwise
// the result holds every graph that compiled; with LoadModeFailFast only
// the first compile error is returned.
func LoadGraphs(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("specs directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing specs directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	value, err := compiler.BuildDir(dir)
	if err != nil {
		return nil, []error{convertCompileError(err, ErrCodeLoadFailed)}
	}

	result := &LoadResult{FileCount: len(cueFiles)}

	graphs, compileErrs := compiler.CompileGraphs(value)
	result.Graphs = graphs

	var errs []error
	for _, err := range compileErrs {
		errs = append(errs, convertCompileError(err, ErrCodeGeneric))
		if mode == LoadModeFailFast {
			return result, errs
		}
	}

	if len(result.Graphs) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeNoGraphs, Message: fmt.Sprintf("no graphs found under %q", compiler.GraphsField)})
	}

	return result, errs
}

// FindCUEFiles returns all .cue files directly in dir. CUE packages do not
// span subdirectories, so nested files are not part of the load.
func FindCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".cue" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

// convertCompileError converts a compiler error to a LoadError with
// position info. fallback is used when the error carries no field.
func convertCompileError(err error, fallback string) *LoadError {
	loadErr := &LoadError{Code: fallback, Message: err.Error()}

	var graphErr *compiler.GraphError
	if errors.As(err, &graphErr) {
		loadErr.Graph = graphErr.Graph
		loadErr.Message = graphErr.Err.Error()
	}

	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		loadErr.Code = MapFieldToErrorCode(compileErr.Field)
		loadErr.Message = fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message)
		loadErr.Pos = compileErr.Pos
		if loadErr.Code == ErrCodeGeneric && fallback != ErrCodeGeneric {
			loadErr.Code = fallback
		}
	}

	return loadErr
}

// Error code constants - unified across all CLI commands.
// Validation codes (E2xx) come from compiler.Validate; ledger codes
// (UNKNOWN_VARIABLE, ...) from package scope.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load or build failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeNoGraphs    = "E006" // No graphs defined
	ErrCodeWriteFailed = "E007" // Output write error
	ErrCodeNoSuchGraph = "E008" // --graph names an unknown graph
	ErrCodeDatabase    = "E009" // Trace store error
	ErrCodeTestFailed  = "E010" // One or more scenarios failed

	// Graph compile errors
	ErrCodeGraphNodes    = "E101" // Missing or malformed nodes
	ErrCodeGraphIO       = "E102" // Missing or malformed inputs or outputs
	ErrCodeValueRank     = "E103" // Missing or malformed rank
	ErrCodeRequiredField = "E104" // Missing name or op
	ErrCodeAttrType      = "E105" // Non-string attribute
)

var indexSuffix = regexp.MustCompile(`\[\d+\]`)

// MapFieldToErrorCode maps a compiler error field such as
// "nodes[2].outputs[0].rank" to an error code.
func MapFieldToErrorCode(field string) string {
	if strings.HasPrefix(field, "attrs.") {
		return ErrCodeAttrType
	}

	path := indexSuffix.ReplaceAllString(field, "")
	last := path[strings.LastIndex(path, ".")+1:]

	switch last {
	case "nodes":
		return ErrCodeGraphNodes
	case "outputs", "inputs":
		return ErrCodeGraphIO
	case "rank":
		return ErrCodeValueRank
	case "name", "op":
		return ErrCodeRequiredField
	default:
		return ErrCodeGeneric
	}
}
