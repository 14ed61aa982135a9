// gqc compiles GameQueer scripts into cartridge images.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/logrusorgru/aurora"
	"github.com/mattn/go-isatty"
	"github.com/tliron/commonlog"

	"github.com/chazu/gqc/assets"
	"github.com/chazu/gqc/server"

	_ "github.com/tliron/commonlog/simple"
)

const version = "0.1.0"

var log = commonlog.GetLogger("gqc")

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("gqc", flag.ContinueOnError)
	verbose := fs.Bool("v", false, "Verbose output")
	debug := fs.Bool("debug", false, "Debug output")
	output := fs.String("o", "", "Cartridge output path (default: <script>.gqcart)")
	mapFile := fs.String("map", "", "Write the linker map to this file")
	listing := fs.String("listing", "", "Write the instruction listing to this file")
	dumpAST := fs.Bool("dump-ast", false, "Print the parsed script")
	goExport := fs.String("go-export", "", "Write a Go package embedding the cartridge to this directory")
	animDir := fs.String("animations", "", "Animation directory (default: <script dir>/animations)")
	cueDir := fs.String("lightcues", "", "Light-cue directory (default: <script dir>/lightcues)")
	cacheDir := fs.String("cache", "", "Encoded frame cache directory (default: none)")
	noColor := fs.Bool("no-color", false, "Disable colored diagnostics")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: gqc [options] file.gqc\n")
		fmt.Fprintf(os.Stderr, "       gqc build [-C dir]\n")
		fmt.Fprintf(os.Stderr, "       gqc lsp\n\n")
		fmt.Fprintf(os.Stderr, "Compiles a GameQueer script into a cartridge image.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  gqc quest.gqc                          # Write quest.gqcart\n")
		fmt.Fprintf(os.Stderr, "  gqc -map quest.map -listing quest.lst quest.gqc\n")
		fmt.Fprintf(os.Stderr, "  gqc -go-export ./cart quest.gqc        # Also write cart/cart.go\n")
		fmt.Fprintf(os.Stderr, "  gqc build                              # Build from gqc.toml\n")
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	verbosity := -1
	switch {
	case *debug:
		verbosity = 2
	case *verbose:
		verbosity = 1
	}
	commonlog.Configure(verbosity, nil)

	au := aurora.NewAurora(!*noColor && isatty.IsTerminal(os.Stderr.Fd()))

	rest := fs.Args()
	if len(rest) > 0 {
		switch rest[0] {
		case "build":
			return handleBuildCommand(rest[1:], au)
		case "lsp":
			if err := server.NewLSP(version).Run(); err != nil {
				fmt.Fprintln(os.Stderr, au.Red("error:"), err)
				return 1
			}
			return 0
		}
	}
	if len(rest) != 1 {
		fs.Usage()
		return 2
	}

	script := rest[0]
	dir := filepath.Dir(script)
	base := strings.TrimSuffix(filepath.Base(script), filepath.Ext(script))

	loader := &assets.Loader{
		AnimationDir: orDefault(*animDir, filepath.Join(dir, "animations")),
		CueDir:       orDefault(*cueDir, filepath.Join(dir, "lightcues")),
	}
	if *cacheDir != "" {
		loader.Cache = assets.NewCache(*cacheDir)
	}

	j := &job{
		Source:  script,
		Loader:  loader,
		Output:  orDefault(*output, filepath.Join(dir, base+".gqcart")),
		Map:     *mapFile,
		Listing: *listing,
	}
	if *goExport != "" {
		j.GoPackage = filepath.Base(*goExport)
		j.GoExport = filepath.Join(*goExport, j.GoPackage+".go")
	}
	if *dumpAST {
		j.DumpAST = os.Stdout
	}
	return runJob(j, au)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
