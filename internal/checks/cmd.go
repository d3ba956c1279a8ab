package checks

import (
	"context"
	"errors"
	"os/exec"
	"regexp"
	"strconv"

	"Probekit/internal/domain"

	"github.com/spf13/pflag"
)

type CmdConfig struct {
	Command string
	Status  string
	Output  string
}

func (c *CmdConfig) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&c.Command, "command", "c", "", "command to run (might need quotes)")
	fs.StringVarP(&c.Status, "status", "s", "0", "exit status code the check should get")
	fs.StringVarP(&c.Output, "check_output", "o", "", "Optionally check the process stdout against a regex")
}

// CmdCheck runs a shell command and compares its exit status and output.
type CmdCheck struct {
	cfg    CmdConfig
	output *regexp.Regexp
}

func NewCmdCheck(cfg CmdConfig) (*CmdCheck, error) {
	if cfg.Command == "" {
		return nil, domain.InvalidConfig("command is required")
	}
	check := &CmdCheck{cfg: cfg}
	if cfg.Output != "" {
		re, err := regexp.Compile(cfg.Output)
		if err != nil {
			return nil, domain.InvalidConfig("invalid output pattern %q: %v", cfg.Output, err)
		}
		check.output = re
	}
	return check, nil
}

func (c *CmdCheck) Name() string { return "CheckCMDStatus" }

func (c *CmdCheck) Run(ctx context.Context) (domain.Result, error) {
	stdout, code, err := runShell(ctx, c.cfg.Command, "", nil)
	if err != nil {
		return domain.Result{}, err
	}

	if strconv.Itoa(code) != c.cfg.Status {
		return domain.Critical("%s exited with %d", c.cfg.Command, code), nil
	}

	if c.output == nil {
		return domain.OK("%s exited with %d", c.cfg.Command, code), nil
	}
	if c.output.Match(stdout) {
		return domain.OK("%s matched %s and exited with %d", c.cfg.Command, c.cfg.Output, code), nil
	}
	return domain.Critical("%s output didn't match %s (exit %d)", c.cfg.Command, c.cfg.Output, code), nil
}

// runShell runs command through sh and returns its stdout and exit code.
// A non-zero exit is not an error.
func runShell(ctx context.Context, command, dir string, env []string) ([]byte, int, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	if len(env) > 0 {
		cmd.Env = append(cmd.Environ(), env...)
	}

	stdout, err := cmd.Output()
	if err == nil {
		return stdout, 0, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, -1, domain.Timeout("run "+command, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout, exitErr.ExitCode(), nil
	}
	return nil, -1, domain.UnexpectedResponse("run "+command, err)
}
