package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type call struct {
	dir  string
	name string
	args []string
}

// fakeRunner replays canned output and records every invocation.
type fakeRunner struct {
	output string
	err    error
	calls  []call
}

func (f *fakeRunner) run(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, call{dir: dir, name: name, args: args})
	return []byte(f.output), f.err
}

// newTestSlurmScheduler creates a SLURM scheduler instance for testing
// without requiring sbatch to be installed
func newTestSlurmScheduler(f *fakeRunner) *SlurmScheduler {
	return NewSlurmSchedulerWithRunner("/usr/bin/sbatch", "/usr/bin/squeue", f.run)
}

func TestSlurmWriteScript(t *testing.T) {
	desc := NewBatchDescriptor(
		[]Setting{
			{Flag: "nodes", Value: "2"},
			{Flag: "time", Value: "36h"},
			{Flag: "output", Value: "log.slurm.stdOut"},
			{Flag: "exclusive"},
		},
		[]string{"module load python", "ips.py --config={config_files} --log={log_file}"},
	)
	desc.UpdateCommands(SingleRunFields("ips.ftx.config", "conf.ips"))

	dir := t.TempDir()
	slurm := newTestSlurmScheduler(&fakeRunner{})
	path, err := slurm.WriteScript(desc, dir)
	if err != nil {
		t.Fatalf("WriteScript failed: %v", err)
	}
	if path != filepath.Join(dir, ScriptName) {
		t.Errorf("path = %s; want %s", path, filepath.Join(dir, ScriptName))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := strings.Join([]string{
		"#!/bin/bash",
		"#SBATCH --nodes=2",
		"#SBATCH --time=1-12:00:00",
		"#SBATCH --output=log.slurm.stdOut",
		"#SBATCH --exclusive",
		"",
		"module load python",
		"ips.py --config=ips.ftx.config --log=log.framework",
		"",
	}, "\n")
	if string(data) != want {
		t.Errorf("script content mismatch\ngot:\n%s\nwant:\n%s", data, want)
	}
}

func TestSlurmWriteScriptRejectsBadTime(t *testing.T) {
	desc := NewBatchDescriptor([]Setting{{Flag: "time", Value: "soon"}}, nil)
	slurm := newTestSlurmScheduler(&fakeRunner{})
	_, err := slurm.WriteScript(desc, t.TempDir())
	if !errors.Is(err, ErrInvalidTimeFormat) {
		t.Errorf("err = %v; want ErrInvalidTimeFormat", err)
	}
}

func TestReadScriptRoundTrip(t *testing.T) {
	desc := NewBatchDescriptor(
		[]Setting{{Flag: "nodes", Value: "4"}, {Flag: "qos", Value: "regular"}},
		[]string{"srun hostname", "echo done"},
	)
	slurm := newTestSlurmScheduler(&fakeRunner{})
	path, err := slurm.WriteScript(desc, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	parsed, err := ReadScript(path)
	if err != nil {
		t.Fatalf("ReadScript failed: %v", err)
	}
	if v, _ := parsed.Setting("nodes"); v != "4" {
		t.Errorf("nodes = %q; want 4", v)
	}
	if v, _ := parsed.Setting("qos"); v != "regular" {
		t.Errorf("qos = %q; want regular", v)
	}
	if len(parsed.Commands) != 2 || parsed.Commands[1] != "echo done" {
		t.Errorf("commands = %v", parsed.Commands)
	}
}

func TestReadScriptRejectsShortOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.sh")
	script := "#!/bin/bash\n#SBATCH --nodes=2\n#SBATCH -N 2\nsrun hostname\n"
	if err := os.WriteFile(path, []byte(script), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := ReadScript(path)
	if !IsParseError(err) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	var pe *ParseError
	if errors.As(err, &pe) && pe.Line != 3 {
		t.Errorf("line = %d; want 3", pe.Line)
	}
}

func TestSlurmSubmit(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		err     error
		wantID  string
		wantErr bool
	}{
		{name: "standard output", output: "Submitted batch job 123456\n", wantID: "123456"},
		{name: "cluster suffix line", output: "sbatch: note\nSubmitted batch job 42", wantID: "42"},
		{name: "parsable", output: "123;perlmutter\n", wantID: "123"},
		{name: "parsable without cluster", output: "98765\n", wantID: "98765"},
		{name: "parsable bad id", output: ";perlmutter", wantErr: true},
		{name: "non-zero exit", output: "sbatch: error: invalid account", err: errors.New("exit status 1"), wantErr: true},
		{name: "unparsable", output: "Submitted batch job", wantErr: true},
		{name: "empty", output: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeRunner{output: tt.output, err: tt.err}
			slurm := newTestSlurmScheduler(f)

			id, err := slurm.Submit(context.Background(), "/work/batchscript.sbatch", "/work")
			if tt.wantErr {
				if !IsSubmissionError(err) {
					t.Fatalf("err = %v; want SubmissionError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Submit failed: %v", err)
			}
			if id != tt.wantID {
				t.Errorf("id = %q; want %q", id, tt.wantID)
			}
			if len(f.calls) != 1 || f.calls[0].dir != "/work" || f.calls[0].name != "/usr/bin/sbatch" {
				t.Errorf("unexpected invocation: %+v", f.calls)
			}
		})
	}
}

func TestSlurmQueryState(t *testing.T) {
	header := "JOBID PARTITION     NAME     USER ST       TIME  NODES NODELIST(REASON)\n"
	tests := []struct {
		name    string
		output  string
		err     error
		want    JobState
		wantErr bool
	}{
		{name: "running", output: header + "  1234  regular  ftx  user  R  1:02:03  2 nid[001-002]\n", want: JobRunning},
		{name: "pending", output: header + "  1234  regular  ftx  user  PD  0:00  2 (Priority)\n", want: JobPending},
		{name: "completing", output: header + "  1234  regular  ftx  user  CG  5:00  2 nid001\n", want: JobState("CG")},
		{name: "header only", output: header, want: JobAbsent},
		{name: "invalid job id", output: "slurm_load_jobs error: Invalid job id specified", err: errors.New("exit status 1"), want: JobAbsent},
		{name: "controller down", output: "slurm_load_jobs error: Unable to contact slurm controller", err: errors.New("exit status 1"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeRunner{output: tt.output, err: tt.err}
			slurm := newTestSlurmScheduler(f)

			got, err := slurm.QueryState(context.Background(), "1234")
			if tt.wantErr {
				if !IsQueryError(err) {
					t.Fatalf("err = %v; want QueryError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("QueryState failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("state = %q; want %q", got, tt.want)
			}
			if got.InQueue() != (tt.want != JobAbsent) {
				t.Errorf("InQueue = %v", got.InQueue())
			}
		})
	}
}

func TestParseSlurmTimeSpec(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"30", 30 * time.Minute},
		{"2:30", 2*time.Hour + 30*time.Minute},
		{"12:00:00", 12 * time.Hour},
		{"1-12:00:00", 36 * time.Hour},
	}
	for _, tt := range tests {
		got, err := parseSlurmTimeSpec(tt.input)
		if err != nil {
			t.Errorf("parseSlurmTimeSpec(%q) error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseSlurmTimeSpec(%q) = %v; want %v", tt.input, got, tt.want)
		}
		if back := formatSlurmTimeSpec(got); back == "" {
			t.Errorf("formatSlurmTimeSpec(%v) is empty", got)
		}
	}
}
