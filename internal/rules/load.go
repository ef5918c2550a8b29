package rules

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/build"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

// LoadMode controls how errors are handled during spec loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the slices compiled from a spec directory.
type LoadResult struct {
	Slices    []SliceSpec
	FileCount int
}

// LoadError represents an error that occurred during spec loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error code constants shared by the loader and the CLI.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error

	ErrCodeNoSlices       = "E100" // No slices declared
	ErrCodeMissingInitial = "E101" // Slice without initial value
	ErrCodeInvalidRule    = "E102" // Rule is not a valid expression
	ErrCodeInvalidValue   = "E103" // Float or non-concrete value
)

// MapFieldToErrorCode maps a compile error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "initial":
		return ErrCodeMissingInitial
	case len(field) > 3 && field[:3] == "on.":
		return ErrCodeInvalidRule
	case field == "value":
		return ErrCodeInvalidValue
	default:
		return ErrCodeGeneric
	}
}

// LoadDir loads and compiles every slice in dir, stopping at the first error.
func LoadDir(dir string) ([]SliceSpec, error) {
	result, errs := Load(dir, LoadModeFailFast)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return result.Slices, nil
}

// Load loads and compiles the CUE package in dir.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func Load(dir string, mode LoadMode) (*LoadResult, []error) {
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

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	result, errs := compileInstances(instances, mode)
	if result != nil {
		result.FileCount = len(cueFiles)
	}
	return result, errs
}

// LoadFiles compiles the slices declared across the given .cue files, which
// must belong to the same package.
func LoadFiles(paths ...string) ([]SliceSpec, error) {
	if len(paths) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: "no CUE files given"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("spec file not found: %s", p)}
		}
	}

	result, errs := compileInstances(load.Instances(paths, &load.Config{}), LoadModeFailFast)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return result.Slices, nil
}

// CompileSource compiles slices from CUE source text.
func CompileSource(filename, src string) ([]SliceSpec, error) {
	value := cuecontext.New().CompileString(src, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}
	result, errs := compileValue(value, LoadModeFailFast)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return result.Slices, nil
}

func compileInstances(instances []*build.Instance, mode LoadMode) (*LoadResult, []error) {
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}

	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	return compileValue(value, mode)
}

func compileValue(value cue.Value, mode LoadMode) (*LoadResult, []error) {
	var errs []error
	result := &LoadResult{}

	slicesVal := value.LookupPath(cue.ParsePath("slice"))
	if !slicesVal.Exists() {
		return result, []error{&LoadError{Code: ErrCodeNoSlices, Message: "no slices found in specs"}}
	}

	iter, err := slicesVal.Fields()
	if err != nil {
		return result, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating slices: %v", err)}}
	}
	for iter.Next() {
		spec, compileErr := CompileSlice(iter.Value())
		if compileErr != nil {
			errs = append(errs, convertCompileError(compileErr, "slice."+iter.Label()))
			if mode == LoadModeFailFast {
				return result, errs
			}
			continue
		}
		result.Slices = append(result.Slices, *spec)
	}

	if len(result.Slices) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeNoSlices, Message: "no slices found in specs"})
	}

	sort.Slice(result.Slices, func(i, j int) bool {
		return result.Slices[i].Name < result.Slices[j].Name
	})
	return result, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compile error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s: %s", context, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}
