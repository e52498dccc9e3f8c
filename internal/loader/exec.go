package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/andrewscwei/minuet/internal/config"
)

// execLoader pipes content through an external command: content on stdin,
// transformed content on stdout. "{file}" in args is replaced with the
// module path.
type execLoader struct {
	base
	opts config.ExecOptions
}

func (l *execLoader) Transform(ctx context.Context, in *Input) (*Output, error) {
	runCtx, cancel := context.WithTimeout(ctx, l.opts.Timeout)
	defer cancel()

	args := make([]string, len(l.opts.Args))
	for i, a := range l.opts.Args {
		args[i] = strings.ReplaceAll(a, "{file}", in.Path)
	}
	// #nosec G204 -- the command comes from the build configuration
	cmd := exec.CommandContext(runCtx, l.opts.Command, args...)
	cmd.Stdin = strings.NewReader(in.Content)
	cmd.Env = append(os.Environ(), "MINUET_FILE="+in.Path)
	// children that inherit stdout must not keep Wait blocked after a kill
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	zerolog.Ctx(ctx).Debug().Str("command", l.opts.Command).Strs("args", args).Str("path", in.Path).Msg("exec loader")
	runErr := cmd.Run()
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%s timed out after %s", l.opts.Command, l.opts.Timeout)
	}
	if runErr != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("%s: %w", l.opts.Command, runErr)
		}
		return nil, fmt.Errorf("%s: %w: %s", l.opts.Command, runErr, msg)
	}
	return &Output{Content: stdout.String()}, nil
}
