// Command wasmcore decodes a Wasm binary module, runs both validator
// passes over it, and optionally re-encodes it, the way vertexvm's
// root main.go drove its VM straight off os.Args[1] (read the file,
// panic on I/O failure, then do the one thing this tool does).
package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"

	"github.com/wasmcore/wasmcore/errs"
	"github.com/wasmcore/wasmcore/feature"
	"github.com/wasmcore/wasmcore/valid"
	"github.com/wasmcore/wasmcore/wasm/reader"
	"github.com/wasmcore/wasmcore/wasm/write"
)

func main() {
	writeOut := flag.String("write", "", "re-encode the decoded module to this path")
	allFeatures := flag.Bool("all-features", false, "enable every post-MVP feature instead of just MVP")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: wasmcore [-write out.wasm] [-all-features] <module.wasm>")
		os.Exit(2)
	}
	fileName := flag.Arg(0)

	input, err := ioutil.ReadFile(fileName)
	if err != nil {
		panic(err)
	}

	f := feature.MVP()
	if *allFeatures {
		f = feature.All()
	}

	sink := &errs.Collector{}
	m, err := reader.ReadModule(input, f, sink)
	if err != nil {
		panic(err)
	}
	log.Printf("%s: decoded %d types, %d funcs, %d imports, %d exports", fileName, len(m.Types), len(m.FuncIndexSpace), len(m.Imports), len(m.Exports))
	for _, e := range sink.Errors {
		log.Printf("decode error: %s", e)
	}

	structSink := &errs.Collector{}
	valid.Structural(m, f, structSink)
	valid.Code(m, f, structSink)
	for _, e := range structSink.Errors {
		log.Printf("validation error: %s", e)
	}
	if sink.OK() && structSink.OK() {
		log.Println("module is well-formed")
	}

	if *writeOut != "" {
		out := write.Module(m)
		if err := ioutil.WriteFile(*writeOut, out, 0644); err != nil {
			panic(err)
		}
		log.Printf("wrote %d bytes to %s", len(out), *writeOut)
	}
}
