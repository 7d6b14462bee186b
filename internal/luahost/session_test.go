// SPDX-License-Identifier: MPL-2.0

package luahost

import (
	"fmt"
	"strings"
	"testing"

	"sesh-cli/internal/options"
	"sesh-cli/pkg/sessfile"
)

// fakeSession records the calls a Lua session function makes.
type fakeSession struct {
	calls   []string
	posargs []string
	env     map[string]string
	unset   []string
	failRun error
}

func newFakeSession() *fakeSession {
	return &fakeSession{posargs: []string{"-x"}, env: map[string]string{}}
}

func (f *fakeSession) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeSession) Install(args ...string) error {
	f.record("install %s", strings.Join(args, " "))
	return nil
}

func (f *fakeSession) CondaInstall(channels []string, args ...string) error {
	f.record("conda_install [%s] %s", strings.Join(channels, ","), strings.Join(args, " "))
	return nil
}

func (f *fakeSession) Run(argv []string, opts ...sessfile.RunOption) error {
	settings := sessfile.NewRunSettings(opts...)
	f.record("run %s silent=%v external=%v", strings.Join(argv, " "), settings.Silent, settings.External)
	return f.failRun
}

func (f *fakeSession) RunInstall(argv []string, _ ...sessfile.RunOption) error {
	f.record("run_install %s", strings.Join(argv, " "))
	return nil
}

func (f *fakeSession) RunShell(line string, _ ...sessfile.RunOption) error {
	f.record("run_shell %s", line)
	return nil
}

func (f *fakeSession) RunShellInstall(line string, _ ...sessfile.RunOption) error {
	f.record("run_shell_install %s", line)
	return nil
}

func (f *fakeSession) InstallAndRunScript(path string, args ...string) error {
	f.record("install_and_run_script %s", path)
	return nil
}

func (f *fakeSession) Chdir(path string) (func(), error) {
	f.record("chdir %s", path)
	return func() { f.record("chdir-restore") }, nil
}

func (f *fakeSession) Notify(target string, posargs []string) error {
	f.record("notify %s %v", target, posargs)
	return nil
}

func (f *fakeSession) CreateTmp() (string, error) {
	f.record("create_tmp")
	return "/tmp/fake", nil
}

func (f *fakeSession) Log(format string, args ...any)   { f.record("log "+format, args...) }
func (f *fakeSession) Debug(format string, args ...any) { f.record("debug "+format, args...) }
func (f *fakeSession) Warn(format string, args ...any)  { f.record("warn "+format, args...) }

func (f *fakeSession) Skip(format string, args ...any) error {
	return sessfile.NewSkip(format, args...)
}

func (f *fakeSession) Error(format string, args ...any) error {
	return sessfile.NewFailure(format, args...)
}

func (f *fakeSession) Name() string        { return "tests-3.12" }
func (f *fakeSession) Python() string      { return "3.12" }
func (f *fakeSession) VenvBackend() string { return "virtualenv" }
func (f *fakeSession) EnvDir() string      { return "/envs/tests" }
func (f *fakeSession) Posargs() []string   { return f.posargs }
func (f *fakeSession) SetPosargs(args []string) {
	f.posargs = append([]string(nil), args...)
}
func (f *fakeSession) CallArgs() *sessfile.CallSpec {
	spec := sessfile.NewCallSpec()
	spec.Set("django", "2.0")
	return spec
}
func (f *fakeSession) Interactive() bool   { return false }
func (f *fakeSession) InvokedFrom() string { return "/project" }
func (f *fakeSession) SetEnv(k, v string)  { f.env[k] = v }
func (f *fakeSession) UnsetEnv(k string)   { f.unset = append(f.unset, k) }

// runSessionScript evaluates a one-session script and runs the session's
// function against the fake handle.
func runSessionScript(t *testing.T, body string, fake *fakeSession) error {
	t.Helper()
	host := NewHost(options.NewSet(), nil, "1.0.0")
	t.Cleanup(host.Close)
	reg, err := host.Evaluate(writeSeshfile(t, "session(\"t\", function(s)\n"+body+"\nend)"))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	return reg.Snapshot()[0].Func(fake)
}

func TestSessionBinding_MethodsReachTheHandle(t *testing.T) {
	t.Parallel()
	fake := newFakeSession()
	err := runSessionScript(t, `
s:install("pytest", "coverage")
s:run("pytest", "-x", { silent = true, external = true })
s:run_install("pip", "list")
s:run_shell("echo hi | tr h H")
s:notify("cleanup", {"fwd"})
s:log("done")
`, fake)
	if err != nil {
		t.Fatalf("session function failed: %v", err)
	}
	want := []string{
		"install pytest coverage",
		"run pytest -x silent=true external=true",
		"run_install pip list",
		"run_shell echo hi | tr h H",
		"notify cleanup [fwd]",
		"log done",
	}
	if len(fake.calls) != len(want) {
		t.Fatalf("calls = %v", fake.calls)
	}
	for i := range want {
		if fake.calls[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, fake.calls[i], want[i])
		}
	}
}

func TestSessionBinding_Properties(t *testing.T) {
	t.Parallel()
	fake := newFakeSession()
	err := runSessionScript(t, `
if s.name ~= "tests-3.12" then error("name: " .. tostring(s.name)) end
if s.python ~= "3.12" then error("python") end
if s.venv_backend ~= "virtualenv" then error("backend") end
if s.env_dir ~= "/envs/tests" then error("env_dir") end
if s.posargs[1] ~= "-x" then error("posargs") end
if s.call_args.django ~= "2.0" then error("call_args") end
if s.interactive ~= false then error("interactive") end
if s.invoked_from ~= "/project" then error("invoked_from") end
`, fake)
	if err != nil {
		t.Fatalf("property access failed: %v", err)
	}
}

func TestSessionBinding_SkipMapsToSkipError(t *testing.T) {
	t.Parallel()
	fake := newFakeSession()
	err := runSessionScript(t, `s:skip("no interpreter today")`, fake)
	if !sessfile.IsSkip(err) {
		t.Fatalf("expected a skip control error, got %v", err)
	}
	if !strings.Contains(err.Error(), "no interpreter today") {
		t.Errorf("skip reason lost: %v", err)
	}
}

func TestSessionBinding_ErrorMapsToFailure(t *testing.T) {
	t.Parallel()
	fake := newFakeSession()
	err := runSessionScript(t, `s:error("it broke")`, fake)
	if !sessfile.IsFailure(err) {
		t.Fatalf("expected a failure control error, got %v", err)
	}
}

func TestSessionBinding_RunFailureAbortsScript(t *testing.T) {
	t.Parallel()
	fake := newFakeSession()
	fake.failRun = sessfile.NewFailure("command failed")
	err := runSessionScript(t, `
s:run("pytest")
s:log("unreachable")
`, fake)
	if err == nil {
		t.Fatal("expected the run failure to propagate")
	}
	for _, call := range fake.calls {
		if strings.Contains(call, "unreachable") {
			t.Errorf("script continued past a failed run: %v", fake.calls)
		}
	}
}

func TestSessionBinding_PlainLuaErrorIsFailure(t *testing.T) {
	t.Parallel()
	fake := newFakeSession()
	err := runSessionScript(t, `error("boom")`, fake)
	if !sessfile.IsFailure(err) {
		t.Fatalf("expected failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("error message lost: %v", err)
	}
}

func TestSessionBinding_EnvAssignment(t *testing.T) {
	t.Parallel()
	fake := newFakeSession()
	err := runSessionScript(t, `s.env = { FOO = "bar", GONE = false }`, fake)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.env["FOO"] != "bar" {
		t.Errorf("SetEnv not called: %v", fake.env)
	}
	if len(fake.unset) != 1 || fake.unset[0] != "GONE" {
		t.Errorf("UnsetEnv not called: %v", fake.unset)
	}
}

func TestSessionBinding_ScopedChdir(t *testing.T) {
	t.Parallel()
	fake := newFakeSession()
	err := runSessionScript(t, `
s:chdir("sub", function()
  s:log("inside")
end)
s:log("after")
`, fake)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"chdir sub", "log inside", "chdir-restore", "log after"}
	if len(fake.calls) != len(want) {
		t.Fatalf("calls = %v", fake.calls)
	}
	for i := range want {
		if fake.calls[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, fake.calls[i], want[i])
		}
	}
}
