package config

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/synum-dev/synum/internal/errors"
)

// Optional marks a value that may be absent from the document.
type Optional[T any] struct {
	value T
	set   bool
}

// Some returns a present Optional.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, set: true}
}

// Get returns the value and whether it was present.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.set
}

// IsSet reports presence.
func (o Optional[T]) IsSet() bool {
	return o.set
}

// Or returns the value or def when absent.
func (o Optional[T]) Or(def T) T {
	if o.set {
		return o.value
	}
	return def
}

// Lookup reads the scalar at a dotted path such as "ASSEMBLY.FASTA_FILE" or
// "NEW_SAMPLES.0.TITLE". Missing or empty values fail with a config error
// naming the full path.
func Lookup(root *yaml.Node, path string) (string, error) {
	f := at(root, "")
	for _, seg := range strings.Split(path, ".") {
		if i, err := strconv.Atoi(seg); err == nil {
			f = f.index(i)
		} else {
			f = f.child(seg)
		}
	}
	var d decoder
	v := d.str(f)
	return v, d.err
}

// field is a node together with the dotted path that reached it.
type field struct {
	node *yaml.Node
	path string
}

func at(root *yaml.Node, path string) field {
	if root != nil && root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	return field{node: root, path: path}
}

func (f field) join(seg string) string {
	if f.path == "" {
		return seg
	}
	return f.path + "." + seg
}

func (f field) child(key string) field {
	out := field{path: f.join(key)}
	if f.node == nil || f.node.Kind != yaml.MappingNode {
		return out
	}
	for i := 0; i+1 < len(f.node.Content); i += 2 {
		if f.node.Content[i].Value == key {
			out.node = f.node.Content[i+1]
			break
		}
	}
	return out
}

func (f field) index(i int) field {
	out := field{path: fmt.Sprintf("%s[%d]", f.path, i)}
	if f.node != nil && f.node.Kind == yaml.SequenceNode && i < len(f.node.Content) {
		out.node = f.node.Content[i]
	}
	return out
}

func (f field) len() int {
	if f.node == nil || f.node.Kind != yaml.SequenceNode {
		return 0
	}
	return len(f.node.Content)
}

// present reports whether the node exists and carries a non-empty value.
func (f field) present() bool {
	n := f.node
	if n == nil {
		return false
	}
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	switch n.Kind {
	case yaml.ScalarNode:
		return n.Tag != "!!null" && strings.TrimSpace(n.Value) != ""
	case yaml.SequenceNode, yaml.MappingNode:
		return len(n.Content) > 0
	}
	return false
}

// decoder reads typed values and keeps the first error.
type decoder struct {
	err error
}

func (d *decoder) fail(format string, args ...any) {
	if d.err == nil {
		d.err = errors.Config(format, args...)
	}
}

// keep records err as the decoder's error unless one is already held.
func (d *decoder) keep(v string, err error) string {
	if err != nil && d.err == nil {
		d.err = err
	}
	return v
}

func (d *decoder) str(f field) string {
	if !f.present() {
		d.fail("missing or empty config field %s", f.path)
		return ""
	}
	if f.node.Kind != yaml.ScalarNode {
		d.fail("config field %s must be a single value", f.path)
		return ""
	}
	return strings.TrimSpace(f.node.Value)
}

func (d *decoder) optStr(f field) Optional[string] {
	if !f.present() {
		return Optional[string]{}
	}
	return Some(d.str(f))
}

func (d *decoder) float(f field) float64 {
	s := d.str(f)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		d.fail("config field %s must be a number, got %q", f.path, s)
	}
	return v
}

func (d *decoder) optFloat(f field) Optional[float64] {
	if !f.present() {
		return Optional[float64]{}
	}
	return Some(d.float(f))
}

// list reads a sequence of scalars; a single scalar is accepted as a one-element list.
func (d *decoder) list(f field, required bool) []string {
	if !f.present() {
		if required {
			d.fail("missing or empty config field %s", f.path)
		}
		return nil
	}
	if f.node.Kind == yaml.ScalarNode {
		return []string{strings.TrimSpace(f.node.Value)}
	}
	if f.node.Kind != yaml.SequenceNode {
		d.fail("config field %s must be a list", f.path)
		return nil
	}
	out := make([]string, 0, f.len())
	for i := 0; i < f.len(); i++ {
		out = append(out, d.str(f.index(i)))
	}
	return out
}

// attrs reads a flat mapping of free-form sample attributes, in document order.
func (d *decoder) attrs(f field) []Attribute {
	if !f.present() {
		return nil
	}
	if f.node.Kind != yaml.MappingNode {
		d.fail("config field %s must be a mapping", f.path)
		return nil
	}
	var out []Attribute
	for i := 0; i+1 < len(f.node.Content); i += 2 {
		k, v := f.node.Content[i], f.node.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			d.fail("config field %s.%s must be a single value", f.path, k.Value)
			return nil
		}
		out = append(out, Attribute{Tag: k.Value, Value: strings.TrimSpace(v.Value)})
	}
	return out
}
