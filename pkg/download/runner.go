package download

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
)

// Process is a running pull whose combined output can be streamed.
type Process interface {
	// Output yields stdout and stderr interleaved; it reaches EOF after exit.
	Output() io.Reader
	// Wait blocks until the process exits and returns its exit code.
	Wait() (int, error)
}

// Runner launches the external pull operation for a model.
type Runner interface {
	Start(modelName string) (Process, error)
}

// ErrToolUnavailable is returned when the pull binary cannot be found.
var ErrToolUnavailable = errors.New("pull tool unavailable")

// ExecRunner runs "<binary> pull <model>" as a child process.
type ExecRunner struct {
	Binary string
}

func NewExecRunner(binary string) *ExecRunner {
	if binary == "" {
		binary = "ollama"
	}
	return &ExecRunner{Binary: binary}
}

func (r *ExecRunner) Start(modelName string) (Process, error) {
	path, err := exec.LookPath(r.Binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrToolUnavailable, r.Binary, err)
	}

	// No context: cancelling a job does not terminate the child.
	cmd := exec.Command(path, "pull", modelName)
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pw.Close()
		return nil, fmt.Errorf("start %s pull: %w", r.Binary, err)
	}

	p := &execProcess{output: pr, done: make(chan struct{})}
	go func() {
		err := cmd.Wait()
		p.code = -1
		if cmd.ProcessState != nil {
			p.code = cmd.ProcessState.ExitCode()
		}
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			p.err = err
		}
		pw.Close()
		close(p.done)
	}()
	return p, nil
}

type execProcess struct {
	output io.Reader
	done   chan struct{}
	code   int
	err    error
}

func (p *execProcess) Output() io.Reader {
	return p.output
}

func (p *execProcess) Wait() (int, error) {
	<-p.done
	return p.code, p.err
}
