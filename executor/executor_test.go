package executor_test

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/userweb"
	"github.com/sagarc03/userweb/executor"
)

type fixture struct {
	site userweb.Site
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("handler scripts need a POSIX shell")
	}

	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	return fixture{site: userweb.Site{User: "alice", Root: root}}
}

func (f fixture) script(t *testing.T, name, body string) string {
	t.Helper()

	path := filepath.Join(f.site.Root, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	require.NoError(t, os.Chmod(path, 0o755))
	return path
}

func (f fixture) allow(t *testing.T, names ...string) string {
	t.Helper()

	path := filepath.Join(f.site.Root, userweb.AllowedVariablesFile)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(names, "\n")+"\n"), 0o644))
	return path
}

func (f fixture) invocation(kind userweb.TargetKind, path string) userweb.Invocation {
	return userweb.Invocation{
		Site: f.site,
		Target: userweb.Target{
			Kind:             kind,
			Path:             path,
			AllowedVariables: filepath.Join(f.site.Root, userweb.AllowedVariablesFile),
		},
	}
}

func TestInvoker_Build_EnvironmentFiltering(t *testing.T) {
	f := newFixture(t)
	exe := f.script(t, "index_executable", "true")
	f.allow(t, "a", "c")

	inv := f.invocation(userweb.KindIndexExecutable, exe)
	inv.Query = url.Values{"a": {"1"}, "b": {"2"}, "c": {"3"}}

	spec, err := executor.NewInvoker(executor.Config{}).Build(inv)
	require.NoError(t, err)

	assert.Equal(t, []string{"a=1", "c=3"}, spec.Env)
	assert.Equal(t, []string{exe}, spec.Args)
	assert.Equal(t, f.site.Root, spec.Dir)
	assert.Nil(t, spec.Stdin)
}

func TestInvoker_Build_PaginationKeysAreReserved(t *testing.T) {
	f := newFixture(t)
	exe := f.script(t, "index_executable", "true")
	f.allow(t, "p", "n", "q")

	inv := f.invocation(userweb.KindIndexExecutable, exe)
	inv.Query = url.Values{"p": {"2"}, "n": {"10"}, "q": {"x"}}

	spec, err := executor.NewInvoker(executor.Config{}).Build(inv)
	require.NoError(t, err)

	assert.Equal(t, []string{"q=x"}, spec.Env)
}

func TestInvoker_Build_WithoutAllowList(t *testing.T) {
	f := newFixture(t)
	exe := f.script(t, "index_executable", "true")

	inv := f.invocation(userweb.KindIndexExecutable, exe)
	inv.Query = url.Values{"a": {"1"}}

	spec, err := executor.NewInvoker(executor.Config{}).Build(inv)
	require.NoError(t, err)

	assert.NotNil(t, spec.Env)
	assert.Empty(t, spec.Env)
}

func TestInvoker_Build_FormPayloads(t *testing.T) {
	f := newFixture(t)
	exe := f.script(t, "form_executable", "true")
	f.allow(t, "name")

	inv := f.invocation(userweb.KindFormExecutable, exe)
	invoker := executor.NewInvoker(executor.Config{})

	t.Run("urlencoded", func(t *testing.T) {
		inv.Payload = userweb.FormPayload{
			Kind:   userweb.PayloadURLEncoded,
			Values: map[string]string{"name": "bob", "HOME": "/root", "other": "x"},
		}

		spec, err := invoker.Build(inv)
		require.NoError(t, err)
		assert.Equal(t, []string{"name=bob"}, spec.Env)
		assert.Equal(t, []string{exe}, spec.Args)
	})

	t.Run("plaintext", func(t *testing.T) {
		inv.Payload = userweb.FormPayload{Kind: userweb.PayloadPlaintext, Text: "hello world"}

		spec, err := invoker.Build(inv)
		require.NoError(t, err)
		assert.Equal(t, []string{exe, "hello world"}, spec.Args)
		assert.Empty(t, spec.Env)
	})

	t.Run("multipart", func(t *testing.T) {
		stream := strings.NewReader("--b\r\n")
		inv.Payload = userweb.FormPayload{Kind: userweb.PayloadMultipart, Stream: stream}

		spec, err := invoker.Build(inv)
		require.NoError(t, err)
		assert.Same(t, stream, spec.Stdin)
		assert.Equal(t, []string{exe}, spec.Args)
	})
}

func TestInvoker_Build_RejectsNonExecutableTargets(t *testing.T) {
	f := newFixture(t)

	_, err := executor.NewInvoker(executor.Config{}).Build(f.invocation(userweb.KindStaticFile, filepath.Join(f.site.Root, "x")))
	assert.Error(t, err)
}

func TestInvoker_Invoke_EnvironmentIsNotInherited(t *testing.T) {
	f := newFixture(t)
	t.Setenv("USERWEB_TEST_SECRET", "leaked")

	exe := f.script(t, "index_executable", `printf '%s|%s|%s|%s' "${a-unset}" "${b-unset}" "${USERWEB_TEST_SECRET-unset}" "${HOME-unset}"`)
	f.allow(t, "a")

	inv := f.invocation(userweb.KindIndexExecutable, exe)
	inv.Query = url.Values{"a": {"1"}, "b": {"2"}}

	out, err := executor.NewInvoker(executor.Config{}).Invoke(context.Background(), inv)
	require.NoError(t, err)

	assert.Equal(t, "1|unset|unset|unset", string(out.Body))
}

func TestInvoker_Invoke_PlaintextArgument(t *testing.T) {
	f := newFixture(t)
	exe := f.script(t, "form_executable", `printf '%s|%s' "$1" "$2"`)

	inv := f.invocation(userweb.KindFormExecutable, exe)
	inv.Payload = userweb.FormPayload{Kind: userweb.PayloadPlaintext, Text: "two words"}

	out, err := executor.NewInvoker(executor.Config{}).Invoke(context.Background(), inv)
	require.NoError(t, err)

	assert.Equal(t, exe+"|two words", string(out.Body))
}

func TestInvoker_Invoke_MultipartStdin(t *testing.T) {
	f := newFixture(t)
	exe := f.script(t, "form_executable", "cat")

	body := "--xyz\r\nContent-Disposition: form-data; name=\"f\"\r\n\r\nv\r\n--xyz--\r\n"
	inv := f.invocation(userweb.KindFormExecutable, exe)
	inv.Payload = userweb.FormPayload{Kind: userweb.PayloadMultipart, Stream: strings.NewReader(body)}

	out, err := executor.NewInvoker(executor.Config{}).Invoke(context.Background(), inv)
	require.NoError(t, err)

	assert.Equal(t, body, string(out.Body))
}

func TestInvoker_Invoke_WorkingDirectory(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(filepath.Join(f.site.Root, "sub"), 0o755))
	exe := f.script(t, filepath.Join("sub", "index_executable"), "cat data.txt")
	require.NoError(t, os.WriteFile(filepath.Join(f.site.Root, "sub", "data.txt"), []byte("local"), 0o644))

	out, err := executor.NewInvoker(executor.Config{}).Invoke(context.Background(), f.invocation(userweb.KindIndexExecutable, exe))
	require.NoError(t, err)

	assert.Equal(t, "local", string(out.Body))
}

func TestInvoker_Invoke_ContentType(t *testing.T) {
	f := newFixture(t)

	html := f.script(t, "index_executable", `printf '<!DOCTYPE html><html><body>hi</body></html>'`)
	out, err := executor.NewInvoker(executor.Config{}).Invoke(context.Background(), f.invocation(userweb.KindIndexExecutable, html))
	require.NoError(t, err)
	assert.Equal(t, "text/html; charset=utf-8", out.ContentType)

	text := f.script(t, "form_executable", `printf 'plain words'`)
	out, err = executor.NewInvoker(executor.Config{}).Invoke(context.Background(), f.invocation(userweb.KindFormExecutable, text))
	require.NoError(t, err)
	assert.Equal(t, "text/plain; charset=utf-8", out.ContentType)
}

func TestInvoker_Invoke_StderrIsNotRelayed(t *testing.T) {
	f := newFixture(t)
	exe := f.script(t, "index_executable", "echo oops >&2\necho ok")

	out, err := executor.NewInvoker(executor.Config{}).Invoke(context.Background(), f.invocation(userweb.KindIndexExecutable, exe))
	require.NoError(t, err)

	assert.Equal(t, "ok\n", string(out.Body))
}

func TestInvoker_Invoke_Failures(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		body   string
		config executor.Config
	}{
		{name: "nonzero exit", body: "echo partial\nexit 3"},
		{name: "timeout", body: "sleep 10", config: executor.Config{Timeout: 200 * time.Millisecond}},
		{name: "output limit", body: "while :; do echo flood; done", config: executor.Config{MaxOutput: 64}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exe := f.script(t, "index_executable", tt.body)

			start := time.Now()
			_, err := executor.NewInvoker(tt.config).Invoke(context.Background(), f.invocation(userweb.KindIndexExecutable, exe))
			require.Error(t, err)

			assert.ErrorIs(t, err, userweb.ErrHandlerExecutionFailed)
			assert.Less(t, time.Since(start), 5*time.Second)
		})
	}
}

func TestInvoker_Invoke_NotExecutable(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(f.site.Root, "index_executable")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\necho hi\n"), 0o644))
	require.NoError(t, os.Chmod(path, 0o644))

	_, err := executor.NewInvoker(executor.Config{}).Invoke(context.Background(), f.invocation(userweb.KindIndexExecutable, path))
	assert.ErrorIs(t, err, userweb.ErrHandlerExecutionFailed)
}

func TestInvoker_Run_CancelledContext(t *testing.T) {
	f := newFixture(t)
	exe := f.script(t, "index_executable", "echo hi")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := executor.NewInvoker(executor.Config{}).Run(ctx, executor.Spec{Path: exe, Args: []string{exe}})
	assert.ErrorIs(t, err, userweb.ErrHandlerExecutionFailed)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInvoker_Run_ExitCode(t *testing.T) {
	f := newFixture(t)
	exe := f.script(t, "index_executable", "exit 7")

	res, err := executor.NewInvoker(executor.Config{}).Run(context.Background(), executor.Spec{Path: exe, Args: []string{exe}})
	require.Error(t, err)
	assert.Equal(t, 7, res.ExitCode)
}
