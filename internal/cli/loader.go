package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/usepat/SW-soniccontrol/internal/compiler"
	"github.com/usepat/SW-soniccontrol/internal/registry"
	"github.com/usepat/SW-soniccontrol/internal/schema"
)

// loadTables compiles every table in dir. Load errors are returned as
// reported by the compiler; a nil result means the directory itself failed.
func loadTables(dir string, mode compiler.LoadMode) ([]compiler.LoadedTable, []error) {
	result, errs := compiler.LoadDir(dir, mode)
	if result == nil {
		return nil, errs
	}
	return result.Tables, errs
}

// loadRegistry builds the registry the command works against: the tables in
// --tables when set, the built-in tables otherwise.
func loadRegistry(opts *RootOptions, logger *slog.Logger) (*registry.Registry, error) {
	if opts.Tables == "" {
		return registry.Default()
	}

	loaded, errs := loadTables(opts.Tables, compiler.LoadModeFailFast)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	tables := make([]schema.ProtocolTable, len(loaded))
	for i, lt := range loaded {
		tables[i] = lt.Table
	}
	logger.Debug("loaded protocol tables", "dir", opts.Tables, "count", len(tables))
	return registry.FromTables(tables, registry.WithLogger(logger))
}

// lookupKey resolves an exact "device/vX.Y.Z/build" key.
func lookupKey(reg *registry.Registry, key string) (*schema.ProtocolDescriptor, error) {
	k, err := schema.ParseKey(key)
	if err != nil {
		return nil, err
	}
	return reg.LookupBuild(k.Device, k.Version, k.Build)
}

// loadErrorCode picks the CLI error code for a registry load failure.
func loadErrorCode(err error) string {
	var le *compiler.LoadError
	if errors.As(err, &le) {
		return le.Code
	}
	return ErrCodeGeneric
}

// withRegistry loads the registry and reports a failure through f.
func withRegistry(opts *RootOptions, f *OutputFormatter, logger *slog.Logger) (*registry.Registry, error) {
	reg, err := loadRegistry(opts, logger)
	if err != nil {
		return nil, f.Fail(ExitCommandError, loadErrorCode(err), fmt.Sprintf("failed to load protocol tables from %q", opts.Tables), err)
	}
	return reg, nil
}

// withDescriptor loads the registry and resolves key, reporting failures
// through f.
func withDescriptor(opts *RootOptions, f *OutputFormatter, logger *slog.Logger, key string) (*registry.Registry, *schema.ProtocolDescriptor, error) {
	reg, err := withRegistry(opts, f, logger)
	if err != nil {
		return nil, nil, err
	}
	desc, err := lookupKey(reg, key)
	if err != nil {
		return nil, nil, f.Fail(ExitCommandError, ErrCodeProtocolNotFound, fmt.Sprintf("no protocol %q", key), err)
	}
	return reg, desc, nil
}

// requireFile reports a missing or non-regular path.
func requireFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}
