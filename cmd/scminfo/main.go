// Command scminfo inspects an SCM pyramid file: its page geometry and,
// optionally, the presence/bounds/decomposition of one specific page.
// It never writes to the pyramid — a read-only companion to the
// renderer, in the spirit of coginfo for GeoTIFF COGs.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rkooima/scm/internal/scmfile"
	"github.com/rkooima/scm/internal/scmidx"
)

func main() {
	var page int64
	flag.Int64Var(&page, "page", -1, "report status/bounds/decomposition for one page id (default: none)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: scminfo [flags] <file.scm>\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) != 1 {
		flag.Usage()
		os.Exit(1)
	}

	if err := run(args[0], page); err != nil {
		fmt.Fprintf(os.Stderr, "scminfo: %v\n", err)
		os.Exit(1)
	}
}

func run(name string, page int64) error {
	f, err := scmfile.Open(scmfile.NewContext(), name)
	if err != nil {
		return err
	}
	defer f.Release()

	fmt.Printf("File: %s\n", f.Path)
	fmt.Printf("Geometry: %s\n", f.FormatDescription())

	if page < 0 {
		return nil
	}

	id := scmidx.PageId(page)
	face := scmidx.Root(id)
	level := scmidx.Level(id)
	row := scmidx.Row(id)
	col := scmidx.Col(id)
	fmt.Printf("\nPage %d: face=%d level=%d row=%d col=%d\n", id, face, level, row, col)

	if !f.PageStatus(id) {
		fmt.Printf("  status: absent\n")
		return nil
	}

	r0, r1 := f.PageBounds(id)
	fmt.Printf("  status: present, offset=%d, bounds=[%f, %f]\n", f.PageOffset(id), r0, r1)
	return nil
}
