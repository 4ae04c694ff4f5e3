// Root command and shared state for the cmdb CLI.
package main

import (
	"errors"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/cmdb/internal/paths"
	"github.com/mesh-intelligence/cmdb/internal/sqlite"
	"github.com/mesh-intelligence/cmdb/pkg/cmdb"
	"github.com/mesh-intelligence/cmdb/pkg/typedvalue"
	"github.com/mesh-intelligence/cmdb/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// userErrors are the failures caused by the request rather than the system.
var userErrors = []error{
	types.ErrNotFound,
	types.ErrInvalidID,
	types.ErrInvalidName,
	types.ErrDuplicateName,
	types.ErrUnknownType,
	types.ErrNotATypedValue,
	types.ErrInvalidOption,
	types.ErrValidation,
	types.ErrMalformedMeta,
	types.ErrUnknownSchema,
	types.ErrUnknownField,
	types.ErrUnknownReference,
	types.ErrUnsatisfiableConstraint,
	types.ErrDefaultRequired,
	types.ErrRequiredValue,
	types.ErrReferenceViolation,
	types.ErrUniqueViolation,
	errUsage,
}

var errUsage = errors.New("usage")

func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	for _, target := range userErrors {
		if errors.Is(err, target) {
			return exitUserError
		}
	}
	return exitSysError
}

// app holds flag values and the resources opened for one invocation.
type app struct {
	flagConfigDir string
	flagDataDir   string
	flagJSON      bool

	configDir string
	cfg       types.Config
	logger    *slog.Logger
	logCloser io.Closer

	backend  *sqlite.Backend
	registry *typedvalue.Registry
}

// newRootCmd builds the command tree over a. The caller must call a.close
// once the command has run.
func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "cmdb",
		Short:         "cmdb is a configuration database with evolving schemas",
		Version:       cmdb.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch cmd.Name() {
			case "version", "help":
				return nil
			}
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flagConfigDir, "config-dir", "", "configuration directory (env "+paths.EnvConfigDir+")")
	pf.StringVar(&a.flagDataDir, "data-dir", "", "data directory (env "+paths.EnvDataDir+")")
	pf.BoolVar(&a.flagJSON, "json", false, "output as JSON")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(a),
		newSchemaCmd(a),
		newFieldCmd(a),
		newEntityCmd(a),
		newValueCmd(a),
		newTypeCmd(a),
		newExportCmd(a),
		newImportCmd(a),
	)
	return root
}

// setup loads config.yaml and builds the logger and type registry. The
// database is opened lazily by the commands that need it.
func (a *app) setup(cmd *cobra.Command) error {
	configDir, err := paths.ResolveConfigDir(a.flagConfigDir)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(configDir)
	if err != nil {
		return err
	}
	if cfg.DataDir, err = paths.ResolveDataDir(a.flagDataDir, cfg.DataDir); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closer, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	loaders := []typedvalue.Loader{typedvalue.Builtins()}
	if len(cfg.Plugins) > 0 {
		loaders = append(loaders, typedvalue.NewPluginLoader(cfg.PluginPaths()))
	}

	a.configDir = configDir
	a.cfg = cfg
	a.logger = logger
	a.logCloser = closer
	a.registry = typedvalue.NewRegistry(logger, loaders...)
	return nil
}

// close releases what setup and the commands opened. Idempotent.
func (a *app) close() error {
	var errs []error
	if a.backend != nil {
		errs = append(errs, a.backend.Detach())
		a.backend = nil
	}
	if a.logCloser != nil {
		errs = append(errs, a.logCloser.Close())
		a.logCloser = nil
	}
	return errors.Join(errs...)
}
