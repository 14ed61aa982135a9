package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/logrusorgru/aurora"

	"github.com/chazu/gqc/assets"
	"github.com/chazu/gqc/compiler"
	"github.com/chazu/gqc/linker"
	"github.com/chazu/gqc/manifest"
	"github.com/chazu/gqc/pkg/codegen"
	"github.com/chazu/gqc/program"
)

// job is one compilation from a script to its output files. Empty output
// paths are skipped.
type job struct {
	Source    string
	Loader    *assets.Loader
	Output    string
	Map       string
	Listing   string
	GoExport  string
	GoPackage string

	// DumpAST receives the parsed script when set.
	DumpAST io.Writer
}

// artifacts are the contents of every output of a job.
type artifacts struct {
	files    map[string][]byte
	image    []byte
	warnings []compiler.Warning
}

// run compiles, links and renders every output in memory. Nothing is
// written unless all steps succeed.
func (j *job) run() (*artifacts, error) {
	src, err := os.ReadFile(j.Source)
	if err != nil {
		return nil, err
	}
	f, err := compiler.Parse(j.Source, src)
	if err != nil {
		return nil, err
	}
	if j.DumpAST != nil {
		spew.Fdump(j.DumpAST, f)
	}

	res, err := compiler.CompileFile(f, compiler.Options{Filename: j.Source, Assets: j.Loader})
	if err != nil {
		return nil, err
	}
	table, err := linker.Link(res.Context)
	if err != nil {
		return nil, err
	}
	image, err := codegen.Generate(table)
	if err != nil {
		return nil, err
	}

	out := &artifacts{files: make(map[string][]byte), image: image, warnings: res.Warnings}
	if j.Output != "" {
		out.files[j.Output] = image
	}
	if j.Map != "" {
		var buf bytes.Buffer
		if err := linker.WriteMap(&buf, table); err != nil {
			return nil, err
		}
		out.files[j.Map] = buf.Bytes()
	}
	if j.Listing != "" {
		var buf bytes.Buffer
		if err := linker.WriteListing(&buf, table); err != nil {
			return nil, err
		}
		out.files[j.Listing] = buf.Bytes()
	}
	if j.GoExport != "" {
		gen, err := codegen.GenerateGo(table, image, codegen.GoExportOptions{Package: j.GoPackage})
		if err != nil {
			return nil, err
		}
		out.files[j.GoExport] = []byte(gen.Code)
	}
	return out, nil
}

// write stores every artifact. All files are first written to temporaries
// beside their targets; only when every one succeeded are they renamed
// into place.
func (a *artifacts) write() error {
	paths := make([]string, 0, len(a.files))
	for path := range a.files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	staged := make(map[string]string, len(paths))
	cleanup := func() {
		for _, tmp := range staged {
			os.Remove(tmp)
		}
	}
	for _, path := range paths {
		tmp, err := stage(path, a.files[path])
		if err != nil {
			cleanup()
			return err
		}
		staged[path] = tmp
	}
	for _, path := range paths {
		if err := os.Rename(staged[path], path); err != nil {
			cleanup()
			return err
		}
		delete(staged, path)
		log.Infof("wrote %s (%d bytes)", path, len(a.files[path]))
	}
	return nil
}

// stage writes data to a temporary file in path's directory and returns
// its name.
func stage(path string, data []byte) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

// manifestJob builds the job described by a gqc.toml.
func manifestJob(m *manifest.Manifest) (*job, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	loader := &assets.Loader{AnimationDir: m.AnimationDir(), CueDir: m.CueDir()}
	if dir := m.CacheDir(); dir != "" {
		loader.Cache = assets.NewCache(dir)
	}
	return &job{
		Source:    m.EntryPath(),
		Loader:    loader,
		Output:    m.OutputPath(),
		Map:       m.MapPath(),
		Listing:   m.ListingPath(),
		GoExport:  m.GoExportPath(),
		GoPackage: m.Build.GoPackage,
	}, nil
}

// handleBuildCommand processes the `gqc build` subcommand.
// Usage:
//
//	gqc build              # build the project around the working directory
//	gqc build -C dir       # build the project in dir
func handleBuildCommand(args []string, au aurora.Aurora) int {
	dir := "."
	for i := 0; i < len(args); i++ {
		if args[i] == "-C" {
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, au.Red("error:"), "-C requires a directory")
				return 2
			}
			dir = args[i+1]
			i++
		}
	}

	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, au.Red("error:"), err)
		return 1
	}
	if m == nil {
		fmt.Fprintf(os.Stderr, "%s no %s found in %s or its parents\n", au.Red("error:"), manifest.FileName, dir)
		return 1
	}
	log.Infof("building %s from %s", m.Project.Name, m.Dir)

	j, err := manifestJob(m)
	if err != nil {
		fmt.Fprintln(os.Stderr, au.Red("error:"), err)
		return 1
	}
	return runJob(j, au)
}

// runJob runs j and reports the outcome on stderr.
func runJob(j *job, au aurora.Aurora) int {
	out, err := j.run()
	if err != nil {
		fmt.Fprint(os.Stderr, formatError(au, err))
		return 1
	}
	for _, w := range out.warnings {
		fmt.Fprintf(os.Stderr, "%s: %s %s\n", au.Bold(w.Loc.String()), au.Yellow("warning:"), w.Message)
	}
	if err := out.write(); err != nil {
		fmt.Fprintln(os.Stderr, au.Red("error:"), err)
		return 1
	}
	return 0
}

// describeMissing spells out unresolved references: stage:end reads as
// "stage end", a bare variable name stays as it is.
func describeMissing(names []string) string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = strings.Replace(n, ":", " ", 1)
	}
	return strings.Join(out, ", ")
}

// formatError renders a compile or link failure, one line per problem.
func formatError(au aurora.Aurora, err error) string {
	var sb strings.Builder

	var unresolved *linker.UnresolvedError
	if errors.As(err, &unresolved) {
		for _, item := range unresolved.Items {
			where := item.Symbol
			if item.Loc.Line > 0 {
				where = item.Loc.String()
			}
			fmt.Fprintf(&sb, "%s: %s undefined %s in %s\n",
				au.Bold(where), au.Red("error:"), describeMissing(item.Missing), item.Symbol)
		}
		return sb.String()
	}

	var perr *program.Error
	if errors.As(err, &perr) && perr.Loc.Line > 0 {
		msg := perr.Err.Error()
		if perr.Msg != "" {
			msg += ": " + perr.Msg
		}
		fmt.Fprintf(&sb, "%s: %s %s\n", au.Bold(perr.Loc.String()), au.Red("error:"), msg)
		return sb.String()
	}

	fmt.Fprintf(&sb, "%s %v\n", au.Red("error:"), err)
	return sb.String()
}
