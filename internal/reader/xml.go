package reader

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/ianaindex"

	"github.com/JonMunkholm/catalogimport/internal/catalog"
)

// collectionPaths are tried in order to find the product elements.
var collectionPaths = []struct{ root, item string }{
	{"produtos", "produto"},
	{"products", "product"},
	{"items", "item"},
}

// textKey holds the character data of an element that also has attributes
// or children.
const textKey = "#text"

// xmlNode is a permissive element tree. Attributes come before children in
// property order, matching document order.
type xmlNode struct {
	name     string
	line     int
	attrs    []xml.Attr
	children []*xmlNode
	text     strings.Builder
}

func (n *xmlNode) isLeaf() bool {
	return len(n.children) == 0 && len(n.attrs) == 0
}

func (n *xmlNode) childrenNamed(name string) []*xmlNode {
	var out []*xmlNode
	for _, c := range n.children {
		if strings.EqualFold(c.name, name) {
			out = append(out, c)
		}
	}
	return out
}

// properties flattens attributes and children into ordered keys. A name that
// appears more than once becomes a []any in document order.
func (n *xmlNode) properties() ([]string, map[string]any) {
	counts := make(map[string]int, len(n.attrs)+len(n.children))
	for _, a := range n.attrs {
		counts[a.Name.Local]++
	}
	for _, c := range n.children {
		counts[c.name]++
	}

	var keys []string
	values := make(map[string]any, len(counts))
	add := func(key string, v any) {
		cur, seen := values[key]
		switch {
		case !seen && counts[key] > 1:
			keys = append(keys, key)
			values[key] = []any{v}
		case !seen:
			keys = append(keys, key)
			values[key] = v
		default:
			values[key] = append(cur.([]any), v)
		}
	}

	for _, a := range n.attrs {
		add(a.Name.Local, a.Value)
	}
	for _, c := range n.children {
		add(c.name, c.value())
	}
	if text := strings.TrimSpace(n.text.String()); text != "" {
		if _, taken := values[textKey]; !taken {
			keys = append(keys, textKey)
			values[textKey] = text
		}
	}
	return keys, values
}

// value renders a node as a string (leaf) or a map (anything else).
func (n *xmlNode) value() any {
	if n.isLeaf() {
		return strings.TrimSpace(n.text.String())
	}
	_, values := n.properties()
	return values
}

func (n *xmlNode) row() catalog.RawRow {
	keys, values := n.properties()
	row := catalog.NewRawRow(len(keys))
	row.Line = n.line
	for _, k := range keys {
		row.Set(k, values[k])
	}
	return row
}

func readXMLFile(path string) ([]catalog.RawRow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, openError(FormatXML, path, err)
	}
	return parseXML(data)
}

// parseXML parses leniently: HTML entities are known and mismatched end tags
// are tolerated. Element names such as link or img are ordinary elements.
func parseXML(data []byte) ([]catalog.RawRow, error) {
	root, err := buildXMLTree(data)
	if err != nil {
		return nil, catalog.NewMalformed(string(FormatXML), err)
	}
	if root == nil {
		return nil, nil
	}

	items := locateProducts(root)
	rows := make([]catalog.RawRow, 0, len(items))
	for i, item := range items {
		row := item.row()
		row.Row = i + 1
		rows = append(rows, row)
	}
	return rows, nil
}

func buildXMLTree(data []byte) (*xmlNode, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = charsetReader

	var root *xmlNode
	var stack []*xmlNode
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			line, _ := dec.InputPos()
			node := &xmlNode{name: t.Name.Local, line: line}
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
					continue
				}
				node.attrs = append(node.attrs, a)
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("multiple root elements: <%s> after <%s>", t.Name.Local, root.name)
				}
				root = node
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, node)
			}
			stack = append(stack, node)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}

	if len(stack) > 0 {
		return nil, fmt.Errorf("element <%s> is not closed", stack[len(stack)-1].name)
	}
	return root, nil
}

// locateProducts returns the elements that make up the product list. A
// document whose elements are all leaves under the root is a single product.
func locateProducts(root *xmlNode) []*xmlNode {
	for _, p := range collectionPaths {
		if !strings.EqualFold(root.name, p.root) {
			continue
		}
		if items := root.childrenNamed(p.item); len(items) > 0 {
			return items
		}
	}

	if len(root.children) == 0 {
		if root.isLeaf() {
			return nil
		}
		return []*xmlNode{root}
	}

	items := root.childrenNamed(root.children[0].name)
	for _, item := range items {
		if !item.isLeaf() {
			return items
		}
	}
	return []*xmlNode{root}
}

// charsetReader decodes documents that declare a non-UTF-8 encoding such as
// ISO-8859-1 or windows-1252.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported charset %q", label)
	}
	return enc.NewDecoder().Reader(input), nil
}
