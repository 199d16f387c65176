package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/roach88/refdrift/internal/command"
)

// Call records a single command invocation seen by FakeRunner.
type Call struct {
	Dir  string
	Name string
	Args []string
}

// Line renders the call as "name arg1 arg2 ...".
func (c Call) Line() string {
	return command.Line(c.Name, c.Args...)
}

// Response is the scripted result for a command.
type Response struct {
	Output string
	Err    error
	// Do runs before the response is returned, e.g. to create files a real
	// command would have produced.
	Do func(call Call)
}

// FakeRunner implements command.Runner by recording calls and returning
// scripted responses. Responses are matched by the longest registered prefix
// of the rendered command line; unmatched commands succeed with empty output.
type FakeRunner struct {
	mu        sync.Mutex
	calls     []Call
	responses map[string]Response
}

// NewFakeRunner creates an empty FakeRunner.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{responses: make(map[string]Response)}
}

// On registers a response for every command whose line starts with prefix.
func (f *FakeRunner) On(prefix string, resp Response) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[prefix] = resp
	return f
}

// Run records the call and returns the matching response.
func (f *FakeRunner) Run(ctx context.Context, dir, name string, args ...string) (string, error) {
	call := Call{Dir: dir, Name: name, Args: append([]string(nil), args...)}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	resp, ok := f.match(call.Line())
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	if resp.Do != nil {
		resp.Do(call)
	}
	if resp.Err != nil {
		return resp.Output, &command.Error{Cmd: call.Line(), Dir: dir, Output: resp.Output, ExitCode: 1, Err: resp.Err}
	}
	return resp.Output, nil
}

func (f *FakeRunner) match(line string) (Response, bool) {
	best := ""
	found := false
	for prefix := range f.responses {
		if strings.HasPrefix(line, prefix) && len(prefix) >= len(best) {
			best = prefix
			found = true
		}
	}
	return f.responses[best], found
}

// Calls returns a copy of all recorded calls in order.
func (f *FakeRunner) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Lines returns the rendered command lines of all recorded calls.
func (f *FakeRunner) Lines() []string {
	calls := f.Calls()
	lines := make([]string, len(calls))
	for i, c := range calls {
		lines[i] = c.Line()
	}
	return lines
}
