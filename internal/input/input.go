// Package input stages a directory of template files and renders parameter
// placeholders into a run's work directory.
package input

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/PieterjanRobbe/ftxctl/internal/errdefs"
	"github.com/PieterjanRobbe/ftxctl/internal/parameter"
	"github.com/PieterjanRobbe/ftxctl/internal/utils"
)

// renderPasses resolves one level of self-reference in parameter values.
const renderPasses = 2

var placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// TemplateInputSet is a snapshot of a source directory: regular files are
// kept as lines to be rendered, sub-directories are copied verbatim.
type TemplateInputSet struct {
	Parameters parameter.Set       `yaml:"parameters"`
	Files      map[string][]string `yaml:"files"`
	Dirs       []string            `yaml:"dirs,omitempty"`
}

// Stage reads every entry of src. Files are read into memory now so later
// edits to the source do not leak into existing runs.
func Stage(src string, params parameter.Set) (*TemplateInputSet, error) {
	if !utils.DirExists(src) {
		return nil, errdefs.Validation(src, "source directory does not exist")
	}
	abs, err := filepath.Abs(src)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, err
	}

	set := &TemplateInputSet{
		Parameters: params,
		Files:      make(map[string][]string),
	}
	for _, entry := range entries {
		path := filepath.Join(abs, entry.Name())
		info, err := os.Stat(path)
		if err != nil {
			return nil, errdefs.Validation(path, "requested input file does not exist")
		}
		if info.IsDir() {
			set.Dirs = append(set.Dirs, path)
			continue
		}
		lines, err := readRawLines(path)
		if err != nil {
			return nil, err
		}
		set.Files[entry.Name()] = lines
	}
	if set.Parameters == nil {
		set.Parameters = parameter.Set{}
	}
	return set, nil
}

// readRawLines keeps line terminators so a rendered file is byte-identical to
// its template apart from the substitutions.
func readRawLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	lines, err := readLinesFrom(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return lines, nil
}

func readLinesFrom(r io.Reader) ([]string, error) {
	var lines []string
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			lines = append(lines, line)
		}
		if err == io.EOF {
			return lines, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// FileNames returns the staged file names in sorted order.
func (s *TemplateInputSet) FileNames() []string {
	names := make([]string, 0, len(s.Files))
	for name := range s.Files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render substitutes every {name} placeholder, twice over. A {name} that
// matches no parameter is an error unless it is a shell expansion (${name}).
func (s *TemplateInputSet) Render(lines []string) ([]string, error) {
	out := make([]string, len(lines))
	copy(out, lines)
	for pass := 0; pass < renderPasses; pass++ {
		for i, line := range out {
			out[i] = s.renderLine(line)
		}
	}
	for _, line := range out {
		if name, ok := s.unresolved(line); ok {
			return nil, errdefs.Validation(name, "placeholder {%s} has no matching parameter", name)
		}
	}
	return out, nil
}

func (s *TemplateInputSet) renderLine(line string) string {
	return placeholderRe.ReplaceAllStringFunc(line, func(match string) string {
		name := match[1 : len(match)-1]
		if p, ok := s.Parameters[name]; ok && p != nil {
			return p.String()
		}
		return match
	})
}

func (s *TemplateInputSet) unresolved(line string) (string, bool) {
	for _, loc := range placeholderRe.FindAllStringSubmatchIndex(line, -1) {
		if loc[0] > 0 && line[loc[0]-1] == '$' {
			continue
		}
		name := line[loc[2]:loc[3]]
		if _, ok := s.Parameters[name]; !ok {
			return name, true
		}
	}
	return "", false
}

// Write copies staged directories into dest and renders every staged file.
// dest must already exist.
func (s *TemplateInputSet) Write(dest string) error {
	if !utils.DirExists(dest) {
		return errdefs.Validation(dest, "destination directory does not exist")
	}
	for _, dir := range s.Dirs {
		if err := utils.CopyDir(dir, filepath.Join(dest, filepath.Base(dir))); err != nil {
			return err
		}
	}
	for _, name := range s.FileNames() {
		lines, err := s.Render(s.Files[name])
		if err != nil {
			return err
		}
		path := filepath.Join(dest, name)
		if err := os.WriteFile(path, []byte(strings.Join(lines, "")), utils.PermFile); err != nil {
			return err
		}
	}
	return nil
}

// Clone deep-copies parameters and staged contents.
func (s *TemplateInputSet) Clone() *TemplateInputSet {
	c := &TemplateInputSet{
		Parameters: s.Parameters.Clone(),
		Files:      make(map[string][]string, len(s.Files)),
		Dirs:       append([]string(nil), s.Dirs...),
	}
	for name, lines := range s.Files {
		c.Files[name] = append([]string(nil), lines...)
	}
	return c
}
