// Package main provides the grad CLI: train small demo networks and inspect .grad files.
package main

import (
	"flag"
	"fmt"
	"os"

	"k8s.io/klog/v2"
)

const version = "v0.1.0"

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "grad %s - scalar autodiff for Go\n\n", version)
	fmt.Fprintln(out, "Usage:")
	fmt.Fprintln(out, "  grad [klog flags] <command> [arguments]")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  version    Show version")
	fmt.Fprintln(out, "  train      Train a demo network (xor, sine) and save a checkpoint")
	fmt.Fprintln(out, "  inspect    Print the header and tensors of a .grad file")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Run 'grad <command> -h' for command flags.")
}

func main() {
	klog.InitFlags(nil)
	flag.Usage = usage
	flag.Parse()
	defer klog.Flush()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	var err error
	switch args[0] {
	case "version":
		fmt.Printf("grad %s\n", version)
	case "train":
		err = runTrain(args[1:], os.Stdout)
	case "inspect":
		err = runInspect(args[1:], os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "grad: unknown command %q\n\n", args[0])
		usage()
		os.Exit(2)
	}
	if err != nil {
		klog.Exitf("grad %s: %+v", args[0], err)
	}
}
