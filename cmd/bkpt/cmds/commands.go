package cmds

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/cosiner/argv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bkptdbg/bkpt/pkg/config"
	"github.com/bkptdbg/bkpt/pkg/logflags"
	"github.com/bkptdbg/bkpt/pkg/proc/native"
	"github.com/bkptdbg/bkpt/pkg/terminal"
	"github.com/bkptdbg/bkpt/pkg/version"
)

var (
	// log is whether to log debug statements.
	log bool
	// logOutput is a comma separated list of components that should produce debug output.
	logOutput string
	// logDest is the file path or file descriptor where logs should go.
	logDest string
	// attachPid is the process to attach to.
	attachPid int
	// commandLine is the quoted command line of the program to launch.
	commandLine string
	// initFile is the path to initialization file.
	initFile string
	// workingDir is the working directory for running the program.
	workingDir string
	// tty is used to provide an alternate TTY for the program you wish to debug.
	tty string
	// disableASLR disables address space randomization for launched programs.
	disableASLR bool

	// rootCommand is the root of the command tree.
	rootCommand *cobra.Command

	conf *config.Config
)

var errNoTarget = errors.New("no program or process specified")

const bkptCommandLongDesc = `bkpt is a minimal debugger for native programs.

bkpt either launches a program and stops it before its first instruction,
or attaches to a running process. The target is then controlled from an
interactive prompt, type 'help' there for the list of commands.

Pass flags to the program you are debugging using ` + "`--`" + `, for example:

` + "`bkpt -- ./server --config conf/config.toml`"

// New returns an initialized command tree.
func New() *cobra.Command {
	// Config setup and load.
	conf = config.LoadConfig()

	// Main bkpt root command.
	rootCommand = &cobra.Command{
		Use:   "bkpt [flags] [--] [program [arguments...]]",
		Short: "bkpt is a minimal debugger.",
		Long:  bkptCommandLongDesc,
		Args:  cobra.ArbitraryArgs,
		Run: func(cmd *cobra.Command, args []string) {
			pid, processArgs, err := targetFromArgs(attachPid, commandLine, args)
			if err == errNoTarget {
				cmd.Usage()
				os.Exit(1)
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "%v\n", err)
				os.Exit(1)
			}
			os.Exit(execute(pid, processArgs, conf))
		},
	}
	// Everything after the program name belongs to the program.
	rootCommand.Flags().SetInterspersed(false)
	rootCommand.SetGlobalNormalizationFunc(normalizeFlag)

	rootCommand.Flags().IntVarP(&attachPid, "pid", "p", 0, "Attach to the running process with the given pid.")
	rootCommand.Flags().StringVarP(&commandLine, "command", "c", "", "Launch the program described by a quoted command line.")
	rootCommand.Flags().StringVar(&workingDir, "wd", "", "Working directory for running the program.")
	rootCommand.Flags().StringVar(&tty, "tty", "", "TTY to use for the target program.")
	rootCommand.Flags().BoolVar(&disableASLR, "disable-aslr", false, "Disables address space randomization for the launched program.")

	rootCommand.PersistentFlags().BoolVarP(&log, "log", "", false, "Enable debugger logging.")
	rootCommand.PersistentFlags().StringVarP(&logOutput, "log-output", "", "", `Comma separated list of components that should produce debug output (proc, command, terminal).`)
	rootCommand.PersistentFlags().StringVarP(&logDest, "log-dest", "", "", "Writes logs to the specified file or file descriptor.")
	rootCommand.PersistentFlags().StringVar(&initFile, "init", "", "Init file, executed by the terminal client.")

	// 'version' subcommand.
	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bkpt Debugger\n%s\n", version.BkptVersion)
			if log {
				fmt.Fprintln(cmd.OutOrStdout(), version.BuildInfo())
			}
		},
	}
	rootCommand.AddCommand(versionCommand)

	return rootCommand
}

// normalizeFlag makes --log_output and --log-output equivalent.
func normalizeFlag(f *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

// targetFromArgs decides between attaching to pid and launching a program,
// which is given either as a list of arguments or as a single command line.
func targetFromArgs(pid int, cmdline string, args []string) (int, []string, error) {
	switch {
	case pid < 0:
		return 0, nil, fmt.Errorf("invalid pid: %d", pid)
	case pid > 0 && (cmdline != "" || len(args) > 0):
		return 0, nil, errors.New("can not attach to a process and launch a program at the same time")
	case pid > 0:
		return pid, nil, nil
	case cmdline != "" && len(args) > 0:
		return 0, nil, errors.New("a program can not be specified both with --command and as arguments")
	case cmdline != "":
		v, err := argv.Argv(cmdline,
			func(s string) (string, error) {
				return "", fmt.Errorf("backtick not supported in '%s'", s)
			},
			nil)
		if err != nil {
			return 0, nil, err
		}
		if len(v) != 1 || len(v[0]) == 0 {
			return 0, nil, fmt.Errorf("illegal command line '%s'", cmdline)
		}
		return 0, v[0], nil
	case len(args) > 0:
		return 0, args, nil
	}
	return 0, nil, errNoTarget
}

func execute(attachPid int, processArgs []string, conf *config.Config) int {
	if err := logflags.Setup(log, logOutput, logDest); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer logflags.Close()

	var (
		p   *native.Process
		err error
	)
	if attachPid > 0 {
		p, err = native.Attach(attachPid)
	} else {
		p, err = native.Launch(processArgs, native.LaunchConfig{
			WorkingDir:  workingDir,
			TTY:         tty,
			DisableASLR: disableASLR || conf.DisableASLR,
		})
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	term := terminal.New(p, conf)
	term.InitFile = initFile
	status, err := term.Run()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	return status
}
