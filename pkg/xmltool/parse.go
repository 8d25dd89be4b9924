package xmltool

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var errNoToolCall = errors.New("no tool call in markup")

// element is a minimal XML tree node.
type element struct {
	name     string
	attrs    map[string]string
	children []*element
	text     strings.Builder
}

func (e *element) attr(name string) string {
	return e.attrs[name]
}

func (e *element) value() string {
	return strings.TrimSpace(e.text.String())
}

// parsedCall is a tool call read from markup, before it is given an id.
type parsedCall struct {
	name string
	args []argument

	// raw holds a legacy <arguments> payload that is already JSON.
	raw string
}

type argument struct {
	key   string
	value string
}

// argumentsJSON encodes the arguments as a JSON object, keeping their order.
func (c parsedCall) argumentsJSON() (string, error) {
	if c.raw != "" {
		return c.raw, nil
	}

	out := "{}"
	for _, arg := range c.args {
		var err error
		out, err = sjson.Set(out, escapeKey(arg.key), arg.value)
		if err != nil {
			return "", fmt.Errorf("setting argument %q: %w", arg.key, err)
		}
	}
	return out, nil
}

// escapeKey makes key a literal sjson path component.
func escapeKey(key string) string {
	var b strings.Builder
	if _, err := strconv.Atoi(key); err == nil {
		b.WriteByte(':')
	}
	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', ':', '!', '=', '<', '>', '%':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// parseSpan reads one complete markup span. The span root decides the
// dialect: <tool_call>, <tool name>, bare <invoke name>, or a declared
// function name.
func parseSpan(span string, declared map[string]struct{}) ([]parsedCall, error) {
	root, err := parseTree(span)
	if err != nil {
		return nil, err
	}

	switch root.name {
	case "tool_call":
		return parseToolCallBlock(root, declared)
	case "tool":
		call, ok := parseTool(root)
		if !ok {
			return nil, errNoToolCall
		}
		return []parsedCall{call}, nil
	case "invoke":
		call, ok := parseInvoke(root)
		if !ok {
			return nil, errNoToolCall
		}
		return []parsedCall{call}, nil
	default:
		if _, ok := declared[root.name]; ok {
			return []parsedCall{parseNamed(root)}, nil
		}
		return nil, errNoToolCall
	}
}

// parseToolCallBlock handles <tool_call> with one or more <invoke>
// children, a single function-named child, or the legacy
// <name>/<arguments> pair.
func parseToolCallBlock(root *element, declared map[string]struct{}) ([]parsedCall, error) {
	var calls []parsedCall
	for _, child := range root.children {
		if child.name != "invoke" {
			continue
		}
		if call, ok := parseInvoke(child); ok {
			calls = append(calls, call)
		}
	}
	if len(calls) > 0 {
		return calls, nil
	}

	if call, ok := parseLegacy(root); ok {
		return []parsedCall{call}, nil
	}

	for _, child := range root.children {
		if child.name == "tool" {
			if call, ok := parseTool(child); ok {
				return []parsedCall{call}, nil
			}
			continue
		}
		if len(child.attrs) == 0 {
			return []parsedCall{parseNamed(child)}, nil
		}
	}
	return nil, errNoToolCall
}

func parseTool(e *element) (parsedCall, bool) {
	name := e.attr("name")
	if name == "" {
		return parsedCall{}, false
	}
	return parsedCall{name: name, args: namedArgs(e, "arg", "parameter")}, true
}

func parseInvoke(e *element) (parsedCall, bool) {
	name := e.attr("name")
	if name == "" {
		return parsedCall{}, false
	}
	return parsedCall{name: name, args: namedArgs(e, "parameter", "arg")}, true
}

func parseLegacy(e *element) (parsedCall, bool) {
	var call parsedCall
	var arguments *element
	for _, child := range e.children {
		switch child.name {
		case "name":
			call.name = child.value()
		case "arguments":
			arguments = child
		}
	}
	if call.name == "" {
		return parsedCall{}, false
	}
	if arguments != nil {
		if v := arguments.value(); gjson.Valid(v) && gjson.Parse(v).IsObject() {
			call.raw = v
		} else {
			call.args = taggedArgs(arguments)
		}
	}
	return call, true
}

// parseNamed reads <fn><k>v</k></fn>.
func parseNamed(e *element) parsedCall {
	return parsedCall{name: e.name, args: taggedArgs(e)}
}

// namedArgs collects <tag name="k">v</tag> children, skipping empty values.
func namedArgs(e *element, tags ...string) []argument {
	var args []argument
	for _, child := range e.children {
		key := child.attr("name")
		if key == "" || !isOneOf(child.name, tags) {
			continue
		}
		if v := child.value(); v != "" {
			args = append(args, argument{key: key, value: v})
		}
	}
	return args
}

// taggedArgs collects <k>v</k> children, skipping empty values.
func taggedArgs(e *element) []argument {
	var args []argument
	for _, child := range e.children {
		if len(child.attrs) > 0 {
			continue
		}
		if v := child.value(); v != "" {
			args = append(args, argument{key: child.name, value: v})
		}
	}
	return args
}

func isOneOf(s string, set []string) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}

// parseTree builds an element tree from span. Bots rarely escape their
// markup properly, so the decoder runs in non-strict mode.
func parseTree(span string) (*element, error) {
	dec := xml.NewDecoder(strings.NewReader(span))
	dec.Strict = false
	dec.Entity = xml.HTMLEntity

	var (
		root  *element
		stack []*element
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing tool markup: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			el := &element{name: t.Name.Local, attrs: make(map[string]string, len(t.Attr))}
			for _, attr := range t.Attr {
				el.attrs[attr.Name.Local] = attr.Value
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, errors.New("parsing tool markup: more than one root element")
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, el)
			}
			stack = append(stack, el)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			// Text lands in every open element so that values nested one
			// level deeper still read back in full.
			for _, el := range stack {
				el.text.Write(t)
			}
		}
	}

	if root == nil {
		return nil, errNoToolCall
	}
	return root, nil
}
