package protocol

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/sieveir/sievekit/diag"
	"github.com/sieveir/sievekit/ir"
)

// wireEvent is the on-wire JSON shape of one Handler call: an event name
// plus its payload, mirroring the teacher's own per-line JSON commands
// (engine/protocol.runSingle's `{"command": "...", ...}` objects read one
// per line from stdin, one per json.Unmarshal call) — here the payload is
// nested under "args" instead of flattened alongside "command", since a
// declareType or gate payload is a nested IR structure rather than a flat
// selection/arguments map.
type wireEvent struct {
	Event string          `json:"event"`
	Args  json.RawMessage `json:"args,omitempty"`
}

type headerArgs struct {
	VersionMajor int    `json:"versionMajor"`
	VersionMinor int    `json:"versionMinor"`
	VersionPatch int    `json:"versionPatch"`
	VersionExtra string `json:"versionExtra"`
	ResourceType string `json:"resourceType"`
}

type pluginArgs struct {
	Name string `json:"name"`
}

// Decode reads a stream of JSON wire events from r (one value after
// another, newline-separated or not) and dispatches each to h in order,
// stopping at the first malformed event or the first Handler call that
// returns (false, err) — the same "abort on the first problem"
// discipline spec.md section 6 describes, applied to a circuit
// description rather than the teacher's recoverable refactoring console
// (engine/protocol.runSingle continues past a bad line, but a
// binary/resource parser here regards a malformed circuit as unusable
// past the failure point).
func Decode(r io.Reader, h Handler) error {
	dec := json.NewDecoder(bufio.NewReader(r))
	for dec.More() {
		var ev wireEvent
		if err := dec.Decode(&ev); err != nil {
			if err == io.EOF {
				return nil
			}
			return diag.Err(diag.StructuralError, diag.GateRef{}, "malformed protocol event: %v", err)
		}
		ok, err := dispatch(h, ev)
		if err != nil {
			return err
		}
		if !ok {
			return diag.Err(diag.StructuralError, diag.GateRef{}, "handler aborted on event %q", ev.Event)
		}
	}
	return nil
}

func dispatch(h Handler, ev wireEvent) (bool, error) {
	switch ev.Event {
	case "setHeader":
		var a headerArgs
		if err := unmarshalArgs(ev, &a); err != nil {
			return false, err
		}
		return h.SetHeader(Version{a.VersionMajor, a.VersionMinor, a.VersionPatch, a.VersionExtra}, a.ResourceType)
	case "declarePlugin":
		var a pluginArgs
		if err := unmarshalArgs(ev, &a); err != nil {
			return false, err
		}
		return h.DeclarePlugin(a.Name)
	case "declareType":
		var spec ir.TypeSpec
		if err := unmarshalArgs(ev, &spec); err != nil {
			return false, err
		}
		return h.DeclareType(spec)
	case "declareConversion":
		var spec ir.ConversionSpec
		if err := unmarshalArgs(ev, &spec); err != nil {
			return false, err
		}
		return h.DeclareConversion(spec)
	case "beginBody":
		return h.BeginBody()
	case "startFunction":
		var sig ir.Signature
		if err := unmarshalArgs(ev, &sig); err != nil {
			return false, err
		}
		return h.StartFunction(sig)
	case "regularFunction":
		return h.RegularFunction()
	case "pluginFunction":
		var binding ir.PluginBinding
		if err := unmarshalArgs(ev, &binding); err != nil {
			return false, err
		}
		return h.PluginFunction(binding)
	case "endFunction":
		return h.EndFunction()
	case "gate":
		var g ir.Gate
		if err := unmarshalArgs(ev, &g); err != nil {
			return false, err
		}
		return h.Gate(g)
	case "endBody":
		return h.EndBody()
	default:
		return false, diag.Err(diag.StructuralError, diag.GateRef{}, "unknown protocol event %q", ev.Event)
	}
}

func unmarshalArgs(ev wireEvent, out interface{}) error {
	if len(ev.Args) == 0 {
		return nil
	}
	if err := json.Unmarshal(ev.Args, out); err != nil {
		return diag.Err(diag.StructuralError, diag.GateRef{}, "event %q: malformed args: %v", ev.Event, err)
	}
	return nil
}

// Encoder writes the event sequence spec.md section 6 describes for an
// already-built ir.Tree, as newline-delimited JSON matching Decode's wire
// shape. It exists for round-tripping (replaying a Tree through Decode
// into a fresh TreeBuilder) and for tools that want to re-emit a parsed
// circuit, the mirror image of the teacher's own printReply helper
// (json.Marshal plus a trailing newline per reply).
type Encoder struct {
	w   io.Writer
	err error
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder { return &Encoder{w: w} }

func (e *Encoder) emit(event string, args interface{}) {
	if e.err != nil {
		return
	}
	var raw json.RawMessage
	if args != nil {
		b, err := json.Marshal(args)
		if err != nil {
			e.err = err
			return
		}
		raw = b
	}
	b, err := json.Marshal(wireEvent{Event: event, Args: raw})
	if err != nil {
		e.err = err
		return
	}
	if _, err := fmt.Fprintf(e.w, "%s\n", b); err != nil {
		e.err = err
	}
}

// Tree writes the full call sequence spec.md section 6 requires for
// tree, in order, and returns the first write or marshal error (if any).
func (e *Encoder) Tree(tree *ir.Tree) error {
	e.emit("setHeader", headerArgs{
		VersionMajor: tree.Header.VersionMajor,
		VersionMinor: tree.Header.VersionMinor,
		VersionPatch: tree.Header.VersionPatch,
		VersionExtra: tree.Header.VersionExtra,
		ResourceType: tree.Header.ResourceType,
	})
	for _, p := range tree.Header.Plugins {
		e.emit("declarePlugin", pluginArgs{Name: p})
	}
	for _, t := range tree.Header.Types {
		e.emit("declareType", t)
	}
	for _, c := range tree.Header.Conversions {
		e.emit("declareConversion", c)
	}
	e.emit("beginBody", nil)
	for _, nf := range tree.Functions {
		e.emit("startFunction", nf.Fn.Signature)
		if nf.Fn.IsPlugin() {
			e.emit("pluginFunction", *nf.Fn.Plugin)
			continue
		}
		e.emit("regularFunction", nil)
		for _, g := range nf.Fn.Body {
			e.emit("gate", g)
		}
		e.emit("endFunction", nil)
	}
	for _, g := range tree.Body {
		e.emit("gate", g)
	}
	e.emit("endBody", nil)
	return e.err
}
