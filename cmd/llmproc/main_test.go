package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jxucoder/llmproc/internal/config"
	"github.com/jxucoder/llmproc/internal/history"
	"github.com/jxucoder/llmproc/internal/notify"
	"github.com/jxucoder/llmproc/internal/source"
	"github.com/jxucoder/llmproc/pkg/llm"
	"github.com/jxucoder/llmproc/pkg/llm/anthropic"
	"github.com/jxucoder/llmproc/pkg/llm/openai"
)

// fakeClient answers from a function and records every request.
type fakeClient struct {
	mu     sync.Mutex
	calls  []string
	system []string
	reply  func(content string) (string, error)
}

func (f *fakeClient) Complete(_ context.Context, system, user string) (string, error) {
	content := strings.TrimPrefix(user, "Input:\n\n ")
	f.mu.Lock()
	f.calls = append(f.calls, content)
	f.system = append(f.system, system)
	f.mu.Unlock()
	return f.reply(content)
}

func (f *fakeClient) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// setupEnv isolates configuration: a fresh data dir, an API key and a
// scratch working directory so no .env file is picked up.
func setupEnv(t *testing.T) (dataDir, workDir string) {
	t.Helper()
	for _, k := range config.Keys {
		t.Setenv(k.Name, "")
	}
	dataDir = t.TempDir()
	workDir = t.TempDir()
	t.Setenv("LLMPROC_DATA_DIR", dataDir)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	chdir(t, workDir)
	return dataDir, workDir
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}

type result struct {
	stdout string
	stderr string
	err    error
}

func execute(t *testing.T, client llm.Client, stdin string, args ...string) result {
	t.Helper()
	a := newApp()
	a.newClient = func(*config.Config) (llm.Client, string) { return client, "fake-model" }

	root := newRootCmd(a)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)

	err := root.Execute()
	return result{stdout: out.String(), stderr: errOut.String(), err: err}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func translator() *fakeClient {
	return &fakeClient{reply: func(content string) (string, error) {
		if content == "Hello" {
			return "Bonjour", nil
		}
		return "fr:" + content, nil
	}}
}

func TestDefaultClient(t *testing.T) {
	c, name := defaultClient(&config.Config{Provider: config.ProviderAnthropic, APIKey: "k"})
	assert.IsType(t, &anthropic.Client{}, c)
	assert.Equal(t, anthropic.DefaultModel, name)

	c, name = defaultClient(&config.Config{Provider: config.ProviderOpenAI, APIKey: "k", Model: "llama3"})
	assert.IsType(t, &openai.Client{}, c)
	assert.Equal(t, "llama3", name)

	_, name = defaultClient(&config.Config{Provider: config.ProviderOpenAI, APIKey: "k"})
	assert.Equal(t, openai.DefaultModel, name)
}

func TestNewLogger_ConcurrentWrites(t *testing.T) {
	const (
		writers = 64
		lines   = 200
	)
	var buf bytes.Buffer
	log := newLogger(&buf, false)

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < lines; i++ {
				log.Info("processing", zap.Int("writer", w), zap.Int("line", i))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, writers*lines, strings.Count(buf.String(), "\n"))
	for _, line := range strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n") {
		require.Contains(t, line, "processing")
	}
}

type stubNotifier struct {
	err   error
	calls int
}

func (s *stubNotifier) Name() string { return "stub" }

func (s *stubNotifier) Notify(context.Context, notify.Message) error {
	s.calls++
	return s.err
}

func TestAppNotify_LogsEachFailureOnce(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	a := newApp()
	a.log = zap.New(core)

	failing := &stubNotifier{err: errors.New("channel_not_found")}
	ok := &stubNotifier{}
	a.notify(context.Background(), []notify.Notifier{failing, ok}, notify.Message{})

	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, ok.calls)
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.WarnLevel).Len())

	a.notify(context.Background(), nil, notify.Message{})
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.WarnLevel).Len())
}

// ---------------------------------------------------------------------------
// pipe
// ---------------------------------------------------------------------------

func TestPipe_StdinToStdout(t *testing.T) {
	_, workDir := setupEnv(t)
	client := translator()

	res := execute(t, client, "Hello", "pipe", "-p", "Translate to French")
	require.NoError(t, res.err)

	assert.Equal(t, "Bonjour\n", res.stdout)
	require.Equal(t, 1, client.count())
	assert.Equal(t, "Translate to French", client.system[0])
	assert.Equal(t, "Hello", client.calls[0])

	entries, err := os.ReadDir(workDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "pipe to stdout must not create files")
}

func TestPipe_StdinToFile(t *testing.T) {
	_, workDir := setupEnv(t)

	res := execute(t, translator(), "Hello", "pipe", "answer.txt", "-p", "Translate to French")
	require.NoError(t, res.err)

	assert.Empty(t, res.stdout)
	data, err := os.ReadFile(filepath.Join(workDir, "answer.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Bonjour", string(data))
}

func TestPipe_FileToDirectory(t *testing.T) {
	_, workDir := setupEnv(t)
	writeFile(t, filepath.Join(workDir, "notes.md"), "cat")

	res := execute(t, translator(), "", "pipe", "notes.md", "out", "-p", "Translate")
	require.NoError(t, res.err)

	data, err := os.ReadFile(filepath.Join(workDir, "out", "notes.md"))
	require.NoError(t, err)
	assert.Equal(t, "fr:cat", string(data))
}

func TestPipe_DashReadsStdin(t *testing.T) {
	setupEnv(t)

	res := execute(t, translator(), "Hello", "pipe", "-", "-p", "Translate")
	require.NoError(t, res.err)
	assert.Equal(t, "Bonjour\n", res.stdout)
}

func TestPipe_ClientErrorIsFatal(t *testing.T) {
	setupEnv(t)
	client := &fakeClient{reply: func(string) (string, error) {
		return "", errors.New("rate limited")
	}}

	res := execute(t, client, "Hello", "pipe", "-p", "Translate")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "rate limited")
	assert.Equal(t, 1, client.count(), "pipe mode must not retry")
	assert.Empty(t, res.stdout)
}

func TestPipe_EmptyStdin(t *testing.T) {
	setupEnv(t)

	res := execute(t, translator(), "", "pipe", "-p", "Translate")
	assert.ErrorIs(t, res.err, source.ErrNoInput)
}

func TestPipe_RecordsHistory(t *testing.T) {
	dataDir, _ := setupEnv(t)

	res := execute(t, translator(), "Hello", "pipe", "-p", "Translate")
	require.NoError(t, res.err)

	st, err := history.Open(filepath.Join(dataDir, "llmproc.db"))
	require.NoError(t, err)
	defer st.Close()

	runs, err := st.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, history.ModePipe, runs[0].Mode)
	assert.Equal(t, "<stdin>", runs[0].Input)
	assert.Equal(t, "<stdout>", runs[0].Output)
	assert.Equal(t, 1, runs[0].Succeeded)
}

func TestPipeArgs(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "in.txt")
	writeFile(t, existing, "x")

	tests := []struct {
		name       string
		args       []string
		piped      bool
		wantInput  string
		wantOutput string
	}{
		{"none", nil, true, "", ""},
		{"dash", []string{"-"}, true, "", ""},
		{"file only", []string{existing}, false, existing, ""},
		{"piped existing file is input", []string{existing}, true, existing, ""},
		{"piped new path is output", []string{"new.txt"}, true, "", "new.txt"},
		{"terminal new path is input", []string{"new.txt"}, false, "new.txt", ""},
		{"both", []string{existing, "out"}, false, existing, "out"},
		{"dash and output", []string{"-", "out.txt"}, true, "", "out.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, out := pipeArgs(tt.args, tt.piped)
			assert.Equal(t, tt.wantInput, in)
			assert.Equal(t, tt.wantOutput, out)
		})
	}
}

// ---------------------------------------------------------------------------
// run
// ---------------------------------------------------------------------------

func TestRun_PartialFailure(t *testing.T) {
	dataDir, workDir := setupEnv(t)
	writeFile(t, filepath.Join(workDir, "in", "a.txt"), "A")
	writeFile(t, filepath.Join(workDir, "in", "b.txt"), "B")
	writeFile(t, filepath.Join(workDir, "in", "c.txt"), "C")

	client := &fakeClient{reply: func(content string) (string, error) {
		if content == "B" {
			return "", errors.New("upstream 500")
		}
		return "out:" + content, nil
	}}

	res := execute(t, client, "", "run", "-i", "in/*.txt", "-o", "out", "-p", "Echo", "-c", "2", "-r", "0")
	require.NoError(t, res.err, "partial failure exits 0")

	assert.Contains(t, res.stdout, "Successfully processed: 2/3 files")
	assert.Contains(t, res.stderr, "Failed to process: 1 files")
	assert.Contains(t, res.stderr, "upstream 500")
	assert.Equal(t, 3, client.count())

	a, err := os.ReadFile(filepath.Join(workDir, "out", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "out:A", string(a))
	assert.NoFileExists(t, filepath.Join(workDir, "out", "b.txt"))
	assert.FileExists(t, filepath.Join(workDir, "out", "c.txt"))

	st, err := history.Open(filepath.Join(dataDir, "llmproc.db"))
	require.NoError(t, err)
	defer st.Close()
	runs, err := st.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, history.ModeBatch, runs[0].Mode)
	assert.Equal(t, 2, runs[0].Succeeded)
	assert.Equal(t, 1, runs[0].Failed)
	assert.Equal(t, 2, runs[0].Concurrency)
	assert.Equal(t, 0, runs[0].MaxRetries)
}

func TestRun_MirrorsNestedPaths(t *testing.T) {
	_, workDir := setupEnv(t)
	writeFile(t, filepath.Join(workDir, "docs", "intro.md"), "one")
	writeFile(t, filepath.Join(workDir, "docs", "guide", "setup.md"), "two")

	res := execute(t, translator(), "", "run", "-i", "docs/**/*.md", "-o", "out", "-p", "Translate", "--no-history")
	require.NoError(t, res.err)
	assert.Contains(t, res.stderr, "progress")
	assert.Contains(t, res.stderr, `"done": 2`)

	assert.FileExists(t, filepath.Join(workDir, "out", "intro.md"))
	assert.FileExists(t, filepath.Join(workDir, "out", "guide", "setup.md"))
}

func TestRun_NoMatches(t *testing.T) {
	_, workDir := setupEnv(t)
	client := translator()

	res := execute(t, client, "", "run", "-i", "missing/*.txt", "-o", "out", "-p", "Echo")
	assert.ErrorIs(t, res.err, source.ErrNoInput)
	assert.Zero(t, client.count())
	assert.NotContains(t, res.stdout, "Successfully processed")
	assert.NoDirExists(t, filepath.Join(workDir, "out"), "no output directory without input")
}

func TestRun_MissingPrompt(t *testing.T) {
	_, workDir := setupEnv(t)
	writeFile(t, filepath.Join(workDir, "in", "a.txt"), "A")

	res := execute(t, translator(), "", "run", "-i", "in/*.txt", "-o", "out")
	assert.ErrorIs(t, res.err, config.ErrMissingPrompt)
}

func TestRun_MissingAPIKey(t *testing.T) {
	_, workDir := setupEnv(t)
	t.Setenv("OPENAI_API_KEY", "")
	writeFile(t, filepath.Join(workDir, "in", "a.txt"), "A")

	res := execute(t, translator(), "", "run", "-i", "in/*.txt", "-o", "out", "-p", "Echo")
	require.ErrorIs(t, res.err, config.ErrInvalid)
	assert.Contains(t, res.err.Error(), "OPENAI_API_KEY")
}

func TestRun_RequiresInputAndOutput(t *testing.T) {
	setupEnv(t)

	res := execute(t, translator(), "", "run", "-o", "out", "-p", "Echo")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "--input")

	res = execute(t, translator(), "", "run", "-i", "*.txt", "-p", "Echo")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "--output")
}

func TestRun_JobFile(t *testing.T) {
	dataDir, workDir := setupEnv(t)
	writeFile(t, filepath.Join(workDir, "in", "a.txt"), "A")
	writeFile(t, filepath.Join(workDir, "prompts", "echo.txt"), "Echo it")
	writeFile(t, filepath.Join(workDir, "nightly.yaml"), `
input: in/*.txt
output: out
prompt_file: prompts/echo.txt
concurrency: 3
retries: 1
`)
	client := translator()

	res := execute(t, client, "", "run", "--job", "nightly.yaml", "-c", "1")
	require.NoError(t, res.err)

	assert.FileExists(t, filepath.Join(workDir, "out", "a.txt"))
	require.Equal(t, 1, client.count())
	assert.Equal(t, "Echo it", client.system[0])

	st, err := history.Open(filepath.Join(dataDir, "llmproc.db"))
	require.NoError(t, err)
	defer st.Close()
	runs, err := st.ListRuns(1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "nightly", runs[0].Name)
	assert.Equal(t, 1, runs[0].Concurrency, "flag overrides job file")
	assert.Equal(t, 1, runs[0].MaxRetries, "job file overrides default")
}

// ---------------------------------------------------------------------------
// history
// ---------------------------------------------------------------------------

func TestHistory_ListAndShow(t *testing.T) {
	dataDir, workDir := setupEnv(t)
	writeFile(t, filepath.Join(workDir, "in", "a.txt"), "A")

	res := execute(t, translator(), "", "run", "-i", "in/*.txt", "-o", "out", "-p", "Echo")
	require.NoError(t, res.err)

	st, err := history.Open(filepath.Join(dataDir, "llmproc.db"))
	require.NoError(t, err)
	runs, err := st.ListRuns(0)
	st.Close()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	id := runs[0].ID

	res = execute(t, nil, "", "history")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, id)
	assert.Contains(t, res.stdout, "1/1")

	res = execute(t, nil, "", "history", id)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Run "+id)
	assert.Contains(t, res.stdout, filepath.Join("in", "a.txt"))

	res = execute(t, nil, "", "history", "nope")
	assert.ErrorIs(t, res.err, history.ErrNotFound)
}

func TestHistory_Empty(t *testing.T) {
	setupEnv(t)

	res := execute(t, nil, "", "history")
	require.NoError(t, res.err)
	assert.Equal(t, "No runs recorded.\n", res.stdout)
}

// ---------------------------------------------------------------------------
// config
// ---------------------------------------------------------------------------

func TestConfig_SetAndShow(t *testing.T) {
	dataDir, _ := setupEnv(t)
	t.Setenv("OPENAI_API_KEY", "")

	res := execute(t, nil, "", "config", "set", "OPENAI_API_KEY", "sk-abcdefghijklmnop")
	require.NoError(t, res.err)
	assert.Equal(t, "Set OPENAI_API_KEY = sk-a***********mnop\n", res.stdout)

	values, err := config.ReadFile(filepath.Join(dataDir, "config.env"))
	require.NoError(t, err)
	assert.Equal(t, "sk-abcdefghijklmnop", values["OPENAI_API_KEY"])

	res = execute(t, nil, "", "config", "show")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "sk-a***********mnop (from config file)")
	assert.NotContains(t, res.stdout, "sk-abcdefghijklmnop")

	res = execute(t, nil, "", "config", "path")
	require.NoError(t, res.err)
	assert.Equal(t, filepath.Join(dataDir, "config.env")+"\n", res.stdout)
}
