package compiler

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/usepat/SW-soniccontrol/internal/schema"
)

// LoadMode controls how errors are handled while loading a table directory.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll compiles every table before returning.
	LoadModeCollectAll
)

// Load error codes, shared with the CLI's JSON output.
const (
	ErrCodeGeneric     = "E001"
	ErrCodeScanError   = "E002"
	ErrCodeNoFiles     = "E003"
	ErrCodeLoadFailed  = "E004"
	ErrCodeNotFound    = "E005"
	ErrCodeBuildFailed = "E006"
	ErrCodeCompile     = "E007"
)

// LoadError is a directory-level failure, or a table that did not compile.
type LoadError struct {
	Code    string
	Table   string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("%s: table %q: %s", e.Code, e.Table, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error { return e.Err }

// LoadResult holds the tables found in a directory, keyed by their CUE label
// in declaration order.
type LoadResult struct {
	Tables    []LoadedTable
	FileCount int
}

// LoadedTable is one compiled entry of the `protocol` struct.
type LoadedTable struct {
	Label string
	Table schema.ProtocolTable
}

// LoadDir loads every CUE file of the package in dir and compiles each
// entry of its top-level `protocol` struct:
//
//	protocol: "descale/v1.0.0/release": {device: "descale", version: "v1.0.0", ...}
func LoadDir(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("tables directory: %v", err), Err: err}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("scanning directory: %v", err), Err: err}}
	}
	if len(files) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	if inst := instances[0]; inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: inst.Err.Error(), Err: inst.Err}}
	}

	value := cuecontext.New().BuildInstance(instances[0])
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: err.Error(), Err: formatCUEError(err)}}
	}

	result := &LoadResult{FileCount: len(files)}
	tables, errs := compileProtocols(value, mode)
	result.Tables = tables
	if len(tables) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no protocol tables found"})
	}
	return result, errs
}

// CompileSource compiles every table of a single CUE source, as LoadDir
// does for a directory. filename only labels positions in errors.
func CompileSource(filename string, src []byte, mode LoadMode) ([]LoadedTable, []error) {
	value := cuecontext.New().CompileBytes(src, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: err.Error(), Err: formatCUEError(err)}}
	}
	return compileProtocols(value, mode)
}

func compileProtocols(value cue.Value, mode LoadMode) ([]LoadedTable, []error) {
	protocols := value.LookupPath(cue.ParsePath("protocol"))
	if !protocols.Exists() {
		return nil, nil
	}
	iter, err := protocols.Fields()
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating protocols: %v", err), Err: err}}
	}

	var tables []LoadedTable
	var errs []error
	for iter.Next() {
		label := iter.Label()
		t, err := CompileTable(iter.Value())
		if err != nil {
			errs = append(errs, &LoadError{Code: ErrCodeCompile, Table: label, Message: err.Error(), Err: err})
			if mode == LoadModeFailFast {
				return tables, errs
			}
			continue
		}
		tables = append(tables, LoadedTable{Label: label, Table: t})
	}
	return tables, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
