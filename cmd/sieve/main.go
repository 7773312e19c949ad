// Command sieve is a thin driver over the core packages: it decodes a
// circuit resource through the protocol package, lowers switch-case
// directives via transform, and executes the result with interp,
// reporting pass/fail the way the teacher's cmd/godoctor reports a
// refactoring's result — parse flags, do the one thing, print, set the
// exit code. It is deliberately not a production SIEVE IR driver
// (surface syntax, the real ZK backend, and plugin dispatch are all out
// of scope per spec.md section 1); it exists to exercise the core
// packages end to end the way an "enclosing tool" would.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sieveir/sievekit/backend"
	"github.com/sieveir/sievekit/config"
	"github.com/sieveir/sievekit/interp"
	"github.com/sieveir/sievekit/ir"
	"github.com/sieveir/sievekit/protocol"
	"github.com/sieveir/sievekit/registry"
	"github.com/sieveir/sievekit/stream"
	"github.com/sieveir/sievekit/transform"
)

// sieveVersion is the tool's own release version, unrelated to a
// circuit's declared protocol.Version (spec.md section 6: version
// identification is "compared by the enclosing tool", and this is that
// tool).
var sieveVersion = protocol.Version{Major: 0, Minor: 1, Patch: 0}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type cliFlags struct {
	configPath    string
	mode          string
	detailedGates bool
	traceSummary  bool
	traceVerbose  bool
	fallbackRAM   bool
	parserFormat  string
	strictStreams bool
}

func newRootCmd() *cobra.Command {
	var flags cliFlags

	cmd := &cobra.Command{
		Use:   "sieve [circuit] [streams]",
		Short: "Interpret a SIEVE IR circuit resource",
		Long: `sieve reads a circuit resource (a protocol wire-event stream, one JSON
object per event, as described in spec.md section 6) and an optional
streams resource (public/private input values, grouped by declared
type), lowers any switch-case directives, and runs the result through
the tree-walking interpreter, printing the outcome.

A "-" or omitted circuit argument reads from stdin.`,
		Args:         cobra.MaximumNArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSieve(cmd, args, &flags)
		},
	}

	cmd.Flags().BoolVarP(&showVersion, "version", "v", false, "print the tool version and exit")
	cmd.Flags().StringVar(&flags.configPath, "config", "", "optional YAML config.Options file")
	cmd.Flags().StringVar(&flags.mode, "mode", "", "override the run mode (prove, verify, preprocess)")
	cmd.Flags().BoolVarP(&flags.detailedGates, "detailed", "d", false, "report a per-gate-kind tally")
	cmd.Flags().BoolVarP(&flags.traceSummary, "trace", "t", false, "summary-level operational tracing")
	cmd.Flags().BoolVarP(&flags.traceVerbose, "trace-verbose", "T", false, "verbose operational tracing")
	cmd.Flags().BoolVar(&flags.fallbackRAM, "fallback-ram", false, "select the alternative RAM plugin dispatch (recorded only; plugin dispatch is out of scope here)")
	cmd.Flags().StringVarP(&flags.parserFormat, "format", "f", "json", `resource parser to use; only "json" is implemented`)
	cmd.Flags().BoolVar(&flags.strictStreams, "strict-switch-streams", false, "reject switches whose cases consume differing per-type stream counts")

	return cmd
}

// showVersion backs -v/--version; read directly in runSieve rather than
// threaded through cliFlags, since it short-circuits before any other
// flag is consulted.
var showVersion bool

func runSieve(cmd *cobra.Command, args []string, flags *cliFlags) error {
	out := cmd.OutOrStdout()

	if showVersion {
		fmt.Fprintln(out, sieveVersion.String())
		return nil
	}

	if flags.parserFormat != "json" {
		return fmt.Errorf("sieve: parser format %q is not implemented (only \"json\")", flags.parserFormat)
	}

	opts, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	if flags.mode != "" {
		opts.Mode = config.Mode(flags.mode)
	}
	if flags.detailedGates {
		opts.DetailedGateCounts = true
	}
	if flags.fallbackRAM {
		opts.FallbackRAM = true
	}
	if flags.strictStreams {
		opts.StrictSwitchStreamCounts = true
	}
	switch {
	case flags.traceVerbose:
		opts.TraceLevel = config.TraceVerbose
	case flags.traceSummary:
		opts.TraceLevel = config.TraceSummary
	}

	circuitPath := "-"
	if len(args) > 0 {
		circuitPath = args[0]
	}
	tree, err := loadCircuit(circuitPath)
	if err != nil {
		return err
	}

	streams := stream.NewSet()
	if len(args) > 1 {
		streams, err = loadStreams(args[1])
		if err != nil {
			return err
		}
	}

	backends, err := buildBackends(tree.Header.Types)
	if err != nil {
		return err
	}
	converters, err := buildConverters(tree.Header.Conversions, backends)
	if err != nil {
		return err
	}

	tr := transform.NewTransformer(backends)
	tr.StrictSwitchStreamCounts = opts.StrictSwitchStreamCounts
	lowered, err := tr.LowerTree(tree)
	if err != nil {
		return err
	}

	trace := logrus.New()
	trace.SetOutput(cmd.ErrOrStderr())
	switch opts.TraceLevel {
	case config.TraceVerbose:
		trace.SetLevel(logrus.DebugLevel)
	case config.TraceSummary:
		trace.SetLevel(logrus.InfoLevel)
	default:
		trace.SetLevel(logrus.WarnLevel)
	}

	it := interp.New(lowered, backends, converters, streams, trace).
		WithSuppressedAssertions(opts.Mode.SuppressesAssertionFailures())
	log, runErr := it.Run()

	if opts.DetailedGateCounts {
		printGateCounts(out, lowered)
	}
	if len(log.Entries) > 0 {
		fmt.Fprint(out, log.String())
	}

	if runErr != nil {
		fmt.Fprintf(out, "FAIL: %v\n", runErr)
		return errSilentFailure
	}
	if log.ContainsErrors() {
		fmt.Fprintln(out, "FAIL")
		return errSilentFailure
	}
	fmt.Fprintln(out, "PASS")
	return nil
}

// errSilentFailure signals a handled, already-reported failure: main
// exits 1 without cobra printing its own "Error: ..." line on top of the
// FAIL/log output already written.
var errSilentFailure = fmt.Errorf("sieve: run failed")

func loadCircuit(path string) (*ir.Tree, error) {
	r, closer, err := openResource(path)
	if err != nil {
		return nil, err
	}
	defer closer()

	builder := protocol.NewTreeBuilder()
	if err := protocol.Decode(r, builder); err != nil {
		return nil, fmt.Errorf("sieve: decoding circuit %s: %w", path, err)
	}
	return builder.Tree()
}

// streamsFile is the on-disk shape of the optional second positional
// resource: per-type public/private input values, keyed the same way
// stream.Set partitions them. ir.Number's own JSON methods (delegating
// to math/big.Int) let values be written as bare decimal literals
// regardless of size.
type streamsFile struct {
	Public  map[ir.TypeIndex][]ir.Number `json:"public"`
	Private map[ir.TypeIndex][]ir.Number `json:"private"`
}

func loadStreams(path string) (*stream.Set, error) {
	r, closer, err := openResource(path)
	if err != nil {
		return nil, err
	}
	defer closer()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("sieve: reading streams %s: %w", path, err)
	}
	var sf streamsFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("sieve: parsing streams %s: %w", path, err)
	}

	set := stream.NewSet()
	for t, values := range sf.Public {
		set.Public[t] = stream.NewSlice(values)
	}
	for t, values := range sf.Private {
		set.Private[t] = stream.NewSlice(values)
	}
	return set, nil
}

func openResource(path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("sieve: opening %s: %w", path, err)
	}
	return f, func() { f.Close() }, nil
}

// buildBackends instantiates one backend.TypeBackend per declared field
// or ring type. Plugin-kinded types get no backend: plugin dispatch is
// out of scope (spec.md section 1's Non-goals), so a circuit gate that
// actually references one will surface as interp's ordinary "no backend
// registered for type" diagnostic rather than a special-cased error here.
func buildBackends(types []ir.TypeSpec) (map[ir.TypeIndex]backend.TypeBackend, error) {
	backends := make(map[ir.TypeIndex]backend.TypeBackend, len(types))
	for i, spec := range types {
		switch spec.Kind {
		case ir.FieldType:
			backends[ir.TypeIndex(i)] = backend.NewField(spec)
		case ir.RingType:
			backends[ir.TypeIndex(i)] = backend.NewRingMod(spec)
		case ir.PluginType:
			// no backend; see doc comment above.
		default:
			return nil, fmt.Errorf("sieve: type %d has unrecognized kind %v", i, spec.Kind)
		}
	}
	return backends, nil
}

// buildConverters registers one backend.BigIntConverter per declared
// conversion, the same generic big.Int-based implementation
// TestLowerSwitchCrossTypeOutput uses: it packs the source values as
// digits of the source modulus into one integer and re-expands that
// integer into OutLength digits of the destination modulus. A value that
// does not fit in those digits is an error unless the Convert gate's
// modulus flag is set, in which case it wraps.
func buildConverters(specs []ir.ConversionSpec, backends map[ir.TypeIndex]backend.TypeBackend) (*registry.ConverterRegistry, error) {
	reg := registry.NewConverterRegistry()
	for _, spec := range specs {
		from, ok := backends[spec.FromType]
		if !ok {
			return nil, fmt.Errorf("sieve: conversion from undeclared type %d", spec.FromType)
		}
		to, ok := backends[spec.ToType]
		if !ok {
			return nil, fmt.Errorf("sieve: conversion to undeclared type %d", spec.ToType)
		}
		conv := backend.NewBigIntConverter(from, to, spec.InLength, spec.OutLength)
		if err := reg.Register(spec.FromType, spec.ToType, spec, conv); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func printGateCounts(out io.Writer, tree *ir.Tree) {
	counts := make(map[ir.GateKind]int)
	var walk func([]ir.Gate)
	walk = func(gates []ir.Gate) {
		for _, g := range gates {
			switch {
			case g.Switch != nil:
				for _, c := range g.Switch.Cases {
					walk(c.Body)
				}
			case g.ForLoop != nil:
				walk(g.ForLoop.Body.Anonymous)
			default:
				counts[g.Kind]++
			}
		}
	}
	walk(tree.Body)
	for _, nf := range tree.Functions {
		if nf.Fn.IsPlugin() {
			continue
		}
		walk(nf.Fn.Body)
	}

	fmt.Fprintln(out, "gate counts:")
	for kind := ir.Add; kind <= ir.Call; kind++ {
		if n, ok := counts[kind]; ok {
			fmt.Fprintf(out, "  %-14s %d\n", kind, n)
		}
	}
}
