// Package newick parses and serializes trees in the nested-parenthesis
// (Newick) notation: children grouped in parentheses, comma-separated, node
// identifiers attached after the group, an optional ":branchlength" suffix,
// and a terminating semicolon.
//
//	(((A,C),G),(C,G));
//	(a:3.2, b, c:2.1)d;
//
// The parser validates balanced grouping, well-formed identifiers and branch
// lengths, and rejects empty child lists and duplicate leaf identifiers.
// Internal node names may repeat: labeled output reuses one state label for
// many ancestors, and it must stay parseable. All failures carry the
// MALFORMED_TOPOLOGY error code. The input text is not retained; the only
// output is the constructed tree.
package newick

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/phylotrace/phylotrace/pkg/errors"
	"github.com/phylotrace/phylotrace/pkg/tree"
)

// Parse converts a single nested-parenthesis statement into a Tree.
//
// Uniqueness is deliberately enforced for leaf identifiers only. Classic
// definitions of the format reject any repeated name, but labeled output
// stamps one state label onto many internal nodes, and that output must
// parse back.
func Parse(text string) (*tree.Tree, error) {
	p := &parser{input: text, tree: tree.New(), names: map[string]bool{}}
	if err := p.run(); err != nil {
		return nil, err
	}
	return p.tree, nil
}

// parser is a single-pass scanner over the input. It keeps an explicit
// stack of open groups instead of recursing, so arbitrarily deep nestings
// parse in constant stack space.
type parser struct {
	input string
	pos   int

	tree  *tree.Tree
	stack []int           // arena indexes of open internal nodes
	cur   int             // most recently completed node, -1 if none
	names map[string]bool // leaf identifiers seen so far

	// expectItem is true right after '(' or ',': the next token must start
	// a child (a group or an identifier), never ')' or another ','.
	expectItem bool

	terminated bool
}

func (p *parser) run() error {
	p.cur = -1
	p.skipSpace()
	if p.pos == len(p.input) {
		return p.fail("empty topology")
	}
	for p.pos < len(p.input) {
		if p.terminated {
			return p.fail("text after terminating ';'")
		}
		switch c := p.input[p.pos]; c {
		case '(':
			if err := p.openGroup(); err != nil {
				return err
			}
		case ',':
			if err := p.nextSibling(); err != nil {
				return err
			}
		case ')':
			if err := p.closeGroup(); err != nil {
				return err
			}
		case ':':
			if err := p.branchLength(); err != nil {
				return err
			}
		case ';':
			if err := p.terminate(); err != nil {
				return err
			}
		default:
			if err := p.identifier(); err != nil {
				return err
			}
		}
		p.skipSpace()
	}
	if !p.terminated {
		return p.fail("missing terminating ';'")
	}
	return nil
}

func (p *parser) openGroup() error {
	if p.cur != -1 && len(p.stack) == 0 {
		return p.fail("unexpected '(' after complete subtree")
	}
	if !p.expectItem && len(p.stack) > 0 && p.cur != -1 {
		return p.fail("missing ',' before '('")
	}
	idx, err := p.addNode("")
	if err != nil {
		return err
	}
	p.stack = append(p.stack, idx)
	p.cur = -1
	p.expectItem = true
	p.pos++
	return nil
}

func (p *parser) nextSibling() error {
	if len(p.stack) == 0 {
		return p.fail("',' outside of any group")
	}
	if p.cur == -1 {
		return p.fail("empty child before ','")
	}
	p.cur = -1
	p.expectItem = true
	p.pos++
	return nil
}

func (p *parser) closeGroup() error {
	if len(p.stack) == 0 {
		return p.fail("unbalanced ')'")
	}
	if p.cur == -1 {
		return p.fail("empty child before ')'")
	}
	p.cur = p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
	p.expectItem = false
	p.pos++

	// Optional identifier attached to the closed group. Internal names are
	// validated but not checked for uniqueness.
	p.skipSpace()
	if p.pos < len(p.input) && isNameByte(p.input[p.pos]) {
		name, err := p.scanName()
		if err != nil {
			return err
		}
		p.tree.Node(p.cur).Name = name
	}
	return nil
}

func (p *parser) branchLength() error {
	if p.cur == -1 {
		return p.fail("branch length without a node")
	}
	n := p.tree.Node(p.cur)
	if n.HasLength {
		return p.fail("duplicate branch length")
	}
	p.pos++ // consume ':'
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.input) && isNameByte(p.input[p.pos]) {
		p.pos++
	}
	raw := p.input[start:p.pos]
	if raw == "" {
		return p.fail("missing branch length after ':'")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return p.fail("invalid branch length %q", raw)
	}
	n.Length = v
	n.HasLength = true
	return nil
}

func (p *parser) terminate() error {
	if len(p.stack) > 0 {
		return p.fail("unbalanced '(': %d groups still open", len(p.stack))
	}
	if p.cur == -1 {
		return p.fail("';' without a tree")
	}
	p.terminated = true
	p.pos++
	return nil
}

// identifier scans a leaf token and adds it as a child of the open group,
// or as a single-node tree when no group is open.
func (p *parser) identifier() error {
	if !isNameByte(p.input[p.pos]) {
		return p.fail("unexpected character %q", rune(p.input[p.pos]))
	}
	if p.cur != -1 {
		return p.fail("missing ',' before identifier")
	}
	name, err := p.scanName()
	if err != nil {
		return err
	}
	if err := p.recordName(name); err != nil {
		return err
	}
	idx, err := p.addNode(name)
	if err != nil {
		return err
	}
	p.cur = idx
	p.expectItem = false
	return nil
}

// addNode creates a node under the innermost open group, or the root when
// the stack is empty.
func (p *parser) addNode(name string) (int, error) {
	if len(p.stack) == 0 {
		idx, err := p.tree.AddRoot(name)
		if err != nil {
			return 0, errors.Wrap(errors.ErrCodeMalformedTopology, err, "at offset %d", p.pos)
		}
		return idx, nil
	}
	idx, err := p.tree.AddChild(p.stack[len(p.stack)-1], name)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeMalformedTopology, err, "at offset %d", p.pos)
	}
	return idx, nil
}

func (p *parser) scanName() (string, error) {
	start := p.pos
	for p.pos < len(p.input) && isNameByte(p.input[p.pos]) {
		p.pos++
	}
	name := strings.TrimSpace(p.input[start:p.pos])
	if err := errors.ValidateIdentifier(name); err != nil {
		return "", errors.Wrap(errors.ErrCodeMalformedTopology, err, "at offset %d", start)
	}
	return name, nil
}

func (p *parser) recordName(name string) error {
	if p.names[name] {
		return p.fail("duplicate leaf identifier %q", name)
	}
	p.names[name] = true
	return nil
}

func (p *parser) skipSpace() {
	for p.pos < len(p.input) && unicode.IsSpace(rune(p.input[p.pos])) {
		p.pos++
	}
}

func (p *parser) fail(format string, args ...any) error {
	return errors.New(errors.ErrCodeMalformedTopology, format, args...)
}

// isNameByte reports whether b can appear inside an identifier or a branch
// length token. Structural characters and whitespace end the token.
func isNameByte(b byte) bool {
	switch b {
	case '(', ')', ',', ':', ';':
		return false
	}
	return !unicode.IsSpace(rune(b))
}
