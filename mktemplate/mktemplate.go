package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/soniakeys/exit"

	"github.com/soniakeys/specfit/internal/fittemplate"
)

const versionString = "mktemplate version 0.2"
const copyrightString = "Public domain."

func main() {
	defer exit.Handler()

	flag.Usage = func() {
		os.Stderr.WriteString(`Usage:
  mktemplate [-o dir] <source.template.yaml> ...
  mktemplate -v

For full documentation:
   go doc github.com/soniakeys/specfit/mktemplate
`)
	}
	dir := flag.String("o", ".", "output directory")
	vers := flag.Bool("v", false, "display version and copyright")
	flag.Parse()
	if *vers {
		fmt.Println(versionString)
		fmt.Println(copyrightString)
		os.Exit(0)
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}
	for _, src := range flag.Args() {
		t, err := fittemplate.ReadYAML(src)
		if err != nil {
			exit.Log(err)
		}
		fn := filepath.Join(*dir, fittemplate.FileName(t))
		if err := t.WriteFile(fn); err != nil {
			exit.Log(err)
		}
		fmt.Printf("%s: %d Gaussian, %d background, %d free of %d parameters\n",
			fn, t.NGauss, t.NPoly, nFree(t), t.NParams())
	}
}

func nFree(t *fittemplate.Template) (n int) {
	for i := range t.ParInfo {
		if t.ParInfo[i].IsFree() {
			n++
		}
	}
	return
}
