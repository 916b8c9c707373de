// Package local implements `blockstack-core local`, which runs contracts
// against a SQLite store on the local machine.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
	"go.dedis.ch/clarity/contract/impl"
	"go.dedis.ch/clarity/internal/config"
	"go.dedis.ch/clarity/logging"
	"go.dedis.ch/clarity/storage/sqlite"
)

// ErrFailed is returned once a command has printed why it failed.
var ErrFailed = errors.New("command failed")

// Runner holds what the commands read from and write to.
type Runner struct {
	Config config.Config
	// FS holds contract sources, program files and the repl history.
	// Databases always live on the OS file system.
	FS     afero.Fs
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	// Now gives the genesis block time of new databases.
	Now func() time.Time

	logger zerolog.Logger
}

// NewRunner returns a runner on the OS file system.
func NewRunner(cfg config.Config, stdin io.Reader, stdout, stderr io.Writer) *Runner {
	return &Runner{
		Config: cfg,
		FS:     afero.NewOsFs(),
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: stderr,
		Now:    time.Now,
		logger: logging.RootLogger.With().Str("Local", "cli").Logger(),
	}
}

// Run parses args, args[0] being the program name, and runs the command.
func (r *Runner) Run(ctx context.Context, args []string) error {
	return r.App().RunContext(ctx, args)
}

// App builds the command tree.
func (r *Runner) App() *cli.App {
	return &cli.App{
		Name:      "blockstack-core",
		Usage:     "run smart contracts",
		Writer:    r.Stdout,
		ErrWriter: r.Stderr,
		Commands: []*cli.Command{
			{
				Name:  "local",
				Usage: "run contracts against a local store",
				Subcommands: []*cli.Command{
					{
						Name:      "initialize",
						Usage:     "create a store with a genesis block",
						ArgsUsage: "<db-path>",
						Action:    r.initialize,
					},
					{
						Name:      "mine_block",
						Usage:     "simulate a new block",
						ArgsUsage: "<block-time> <db-path>",
						Action:    r.mineBlock,
					},
					{
						Name:      "get_block_height",
						Usage:     "print the simulated block height",
						ArgsUsage: "<db-path>",
						Action:    r.getBlockHeight,
					},
					{
						Name:      "check",
						Usage:     "statically check a contract",
						ArgsUsage: "<contract-file> [db-path]",
						Flags: []cli.Flag{
							&cli.BoolFlag{Name: "ast", Usage: "print the syntax tree"},
						},
						Action: r.check,
					},
					{
						Name:      "launch",
						Usage:     "check and launch a contract",
						ArgsUsage: "<contract-name> <contract-file> <db-path>",
						Action:    r.launch,
					},
					{
						Name:      "eval",
						Usage:     "evaluate a program in a contract without keeping writes",
						ArgsUsage: "<contract-name> [program-file] <db-path>",
						Action:    r.eval,
					},
					{
						Name:      "eval_raw",
						Usage:     "evaluate a program from stdin on an empty in-memory store",
						ArgsUsage: " ",
						Action:    r.evalRaw,
					},
					{
						Name:      "repl",
						Usage:     "evaluate programs line by line",
						ArgsUsage: " ",
						Action:    r.repl,
					},
					{
						Name:      "execute",
						Usage:     "call a public function in a transaction",
						ArgsUsage: "<db-path> <contract-name> <function> <sender> [args...]",
						Action:    r.execute,
					},
					{
						Name:      "receipts",
						Usage:     "list executed transactions",
						ArgsUsage: "<db-path>",
						Action:    r.receipts,
					},
					{
						Name:      "describe",
						Usage:     "print what a launched contract defines",
						ArgsUsage: "<contract-name> <db-path>",
						Action:    r.describe,
					},
				},
			},
		},
	}
}

func usage(c *cli.Context) error {
	return fmt.Errorf("usage: %s %s", c.Command.FullName(), c.Command.ArgsUsage)
}

func (r *Runner) printf(format string, args ...any) {
	fmt.Fprintf(r.Stdout, format, args...)
}

// fail prints a failure message and returns ErrFailed.
func (r *Runner) fail(header string, err error) error {
	r.printf("%s\n%v\n", header, err)
	r.logger.Debug().Err(err).Msg(header)
	return ErrFailed
}

// databaseExists looks path up on the OS file system, the one SQLite
// opens it on. Runner.FS only serves contract sources and programs.
func databaseExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	return true, nil
}

// openDatabase opens an initialized store.
func (r *Runner) openDatabase(ctx context.Context, path string) (*sqlite.Store, *impl.ContractDatabase, error) {
	exists, err := databaseExists(path)
	if err != nil {
		return nil, nil, err
	}
	if !exists {
		return nil, nil, fmt.Errorf("no database at %s, run initialize first", path)
	}
	store, err := sqlite.Open(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	db, err := impl.NewContractDatabase(store, r.Config.ContractCacheSize)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return store, db, nil
}

func (r *Runner) readFile(path string) (string, error) {
	data, err := afero.ReadFile(r.FS, path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func (r *Runner) readStdin() (string, error) {
	data, err := io.ReadAll(r.Stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}

// isTerminal reports whether the runner reads the process stdin, which
// is when line editing is used.
func (r *Runner) isTerminal() bool {
	f, ok := r.Stdin.(*os.File)
	return ok && f == os.Stdin
}
