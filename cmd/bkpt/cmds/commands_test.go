package cmds

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helperEnv = "BKPT_TEST_RUN_MAIN"

// TestMain runs the command tree instead of the tests when the test binary
// is started by runBkpt.
func TestMain(m *testing.M) {
	if os.Getenv(helperEnv) == "1" {
		cmd := New()
		cmd.SetArgs(os.Args[1:])
		if err := cmd.Execute(); err != nil {
			os.Exit(1)
		}
		os.Exit(0)
	}
	os.Exit(m.Run())
}

// runBkpt runs bkpt with the given arguments, feeding it stdin.
func runBkpt(t *testing.T, stdin string, args ...string) (stdout, stderr string, status int) {
	t.Helper()
	var outbuf, errbuf bytes.Buffer
	cmd := exec.Command(os.Args[0], args...)
	cmd.Env = append(os.Environ(), helperEnv+"=1", "XDG_CONFIG_HOME="+t.TempDir(), "TERM=dumb")
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Stdout = &outbuf
	cmd.Stderr = &errbuf
	err := cmd.Run()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		status = exitErr.ExitCode()
	default:
		t.Fatalf("could not run bkpt: %v", err)
	}
	return outbuf.String(), errbuf.String(), status
}

func TestTargetFromArgs(t *testing.T) {
	tests := []struct {
		pid     int
		cmdline string
		args    []string
		wantPid int
		want    []string
		err     bool
	}{
		{pid: 10, wantPid: 10},
		{args: []string{"./prog", "-v", "x"}, want: []string{"./prog", "-v", "x"}},
		{cmdline: `./prog "hello world" 'a b' c`, want: []string{"./prog", "hello world", "a b", "c"}},
		{cmdline: "./prog | grep x", err: true},
		{cmdline: "./prog `date`", err: true},
		{cmdline: "./prog", args: []string{"./prog"}, err: true},
		{pid: 10, args: []string{"./prog"}, err: true},
		{pid: 10, cmdline: "./prog", err: true},
		{pid: -1, err: true},
	}
	for _, tc := range tests {
		pid, args, err := targetFromArgs(tc.pid, tc.cmdline, tc.args)
		if tc.err {
			assert.Error(t, err, "%+v", tc)
			continue
		}
		if assert.NoError(t, err, "%+v", tc) {
			assert.Equal(t, tc.wantPid, pid)
			assert.Equal(t, tc.want, args)
		}
	}

	_, _, err := targetFromArgs(0, "", nil)
	require.Equal(t, errNoTarget, err)
}

func TestFlags(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cmd := New()
	for _, name := range []string{"pid", "command", "wd", "tty", "disable-aslr", "init", "log", "log-output", "log-dest"} {
		require.NotNil(t, cmd.Flag(name), "flag %s", name)
	}
	require.Equal(t, "p", cmd.Flag("pid").Shorthand)
	require.Equal(t, "c", cmd.Flag("command").Shorthand)
	for _, name := range []string{"init", "log", "log-output", "log-dest"} {
		require.NotNil(t, cmd.PersistentFlags().Lookup(name), "persistent flag %s", name)
	}

	// Flags after the program name are passed to the program.
	require.NoError(t, cmd.Flags().Parse([]string{"--wd", "/tmp", "./prog", "--wd", "x"}))
	require.Equal(t, "/tmp", workingDir)
	require.Equal(t, []string{"./prog", "--wd", "x"}, cmd.Flags().Args())
}

func TestVersion(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cmd := New()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	require.True(t, strings.HasPrefix(buf.String(), "bkpt Debugger\nVersion: "), "unexpected output %q", buf.String())
}

func TestNoTarget(t *testing.T) {
	_, stderr, status := runBkpt(t, "")
	require.Equal(t, 1, status)
	require.Contains(t, stderr, "Usage:")
}

func TestLaunchFailure(t *testing.T) {
	_, stderr, status := runBkpt(t, "", "voldemort")
	require.Equal(t, 1, status)
	require.Contains(t, stderr, `could not launch "voldemort"`)
}

func TestAttachFailure(t *testing.T) {
	_, stderr, status := runBkpt(t, "", "-p", "999999")
	require.Equal(t, 1, status)
	require.Contains(t, stderr, "could not attach to pid 999999")
}

func TestLaunchContinue(t *testing.T) {
	stdout, stderr, status := runBkpt(t, "help\ncontinue\nquit\n", "-c", "/bin/sh -c 'exit 4'")
	require.Equal(t, 0, status, "stderr: %s", stderr)
	require.Contains(t, stdout, "stopped with signal trace/breakpoint trap")
	require.Contains(t, stdout, "The following commands are available:")
	require.Contains(t, stdout, "exited with status 4")
	require.NotContains(t, stdout, "Killing process")
}

func TestLaunchQuitKills(t *testing.T) {
	stdout, stderr, status := runBkpt(t, "", "--", "/bin/sh", "-c", "sleep 10")
	require.Equal(t, 0, status, "stderr: %s", stderr)
	// End of input quits.
	require.Contains(t, stdout, "exit\nKilling process ")
}

func TestAttachDetach(t *testing.T) {
	target := exec.Command("sleep", "10")
	require.NoError(t, target.Start())
	defer func() {
		target.Process.Kill()
		target.Wait()
	}()

	stdout, stderr, status := runBkpt(t, "quit\n", "-p", strconv.Itoa(target.Process.Pid))
	if strings.Contains(stderr, "operation not permitted") {
		t.Skip("ptrace of a non descendant process is not permitted")
	}
	require.Equal(t, 0, status, "stderr: %s", stderr)
	require.Contains(t, stdout, "stopped with signal stopped (signal)")
	require.Contains(t, stdout, "Detaching from process")

	// Still alive after the debugger exited.
	require.NoError(t, target.Process.Signal(syscall.Signal(0)))
}

func TestFlagNormalization(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cmd := New()
	require.NoError(t, cmd.PersistentFlags().Parse([]string{"--log_output=proc,terminal"}))
	require.Equal(t, "proc,terminal", logOutput)
}
