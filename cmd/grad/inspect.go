package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/born-ml/grad/internal/serialization"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

const optimizerPrefix = "optimizer."

// maxPrintedValues caps the values printed per tensor with -values.
const maxPrintedValues = 8

func runInspect(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(stdout)
	skipChecksum := fs.Bool("skip-checksum", false, "Do not verify the payload checksum")
	showValues := fs.Bool("values", false, "Print the first values of every tensor")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: grad inspect [-skip-checksum] [-values] <file.grad>")
	}
	return inspect(fs.Arg(0), *skipChecksum, *showValues, stdout)
}

func inspect(path string, skipChecksum, showValues bool, stdout io.Writer) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrapf(err, "stat %s", path)
	}
	reader, err := serialization.NewReaderWithOptions(path, serialization.ReaderOptions{
		SkipChecksumValidation: skipChecksum,
		ValidationLevel:        serialization.ValidationStrict,
	})
	if err != nil {
		return errors.Wrapf(err, "reading %s", path)
	}
	defer reader.Close()
	header := reader.Header()

	fmt.Fprintf(stdout, "%s (%s)\n", path, humanize.Bytes(uint64(info.Size())))
	fmt.Fprintf(stdout, "  format:     v%d\n", header.FormatVersion)
	fmt.Fprintf(stdout, "  run:        %s\n", header.RunID)
	fmt.Fprintf(stdout, "  model:      %s\n", header.ModelType)
	if !header.CreatedAt.IsZero() {
		fmt.Fprintf(stdout, "  created:    %s (%s)\n", header.CreatedAt.Format("2006-01-02 15:04:05 MST"), humanize.Time(header.CreatedAt))
	}
	for _, key := range sortedKeys(header.Metadata) {
		fmt.Fprintf(stdout, "  %-11s %s\n", key+":", header.Metadata[key])
	}
	if reader.IsCheckpoint() {
		meta := header.CheckpointMeta
		fmt.Fprintf(stdout, "  checkpoint: epoch %d, step %s, loss %.6g\n", meta.Epoch, humanize.Comma(meta.Step), meta.Loss)
		if meta.OptimizerType != "" {
			fmt.Fprintf(stdout, "  optimizer:  %s %s\n", meta.OptimizerType, formatMap(meta.OptimizerConfig))
		}
		if len(meta.TrainingMeta) > 0 {
			fmt.Fprintf(stdout, "  training:   %s\n", formatMap(meta.TrainingMeta))
		}
	}

	var parameters, optimizerState int
	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\nTENSOR\tSHAPE\tELEMENTS\tSIZE")
	for _, name := range reader.TensorNames() {
		meta, err := reader.TensorInfo(name)
		if err != nil {
			return err
		}
		numElements := meta.NumElements()
		if strings.HasPrefix(name, optimizerPrefix) {
			optimizerState += numElements
		} else {
			parameters += numElements
		}
		fmt.Fprintf(w, "%s\t%v\t%s\t%s\n", name, meta.Shape, humanize.Comma(int64(numElements)), humanize.Bytes(uint64(meta.Size)))
		if showValues {
			t, err := reader.ReadTensor(name)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "\t%s\t\t\n", formatValues(t.Data))
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "\n%s parameters", humanize.Comma(int64(parameters)))
	if optimizerState > 0 {
		fmt.Fprintf(stdout, ", %s optimizer state values", humanize.Comma(int64(optimizerState)))
	}
	fmt.Fprintln(stdout)
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func formatMap(m map[string]any) string {
	parts := make([]string, 0, len(m))
	for _, k := range sortedKeys(m) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, m[k]))
	}
	return "{" + strings.Join(parts, " ") + "}"
}

func formatValues(data []float64) string {
	parts := make([]string, 0, min(len(data), maxPrintedValues)+1)
	for i, v := range data {
		if i == maxPrintedValues {
			parts = append(parts, "...")
			break
		}
		parts = append(parts, fmt.Sprintf("%.4g", v))
	}
	return "[" + strings.Join(parts, " ") + "]"
}
