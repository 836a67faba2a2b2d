// Package htmlx holds the small HTML helpers used on entry bodies: link
// discovery, plain-text extraction and excerpt shortening.
package htmlx

import (
	"errors"
	"io"
	"net/url"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var ErrNilNode = errors.New("nil node")

// Parse parses an HTML document or fragment.
func Parse(r io.Reader) (*html.Node, error) {
	return html.Parse(r)
}

// ForEachNode calls task on root and, while task returns true, on all of
// its descendants in document order.
func ForEachNode(root *html.Node, task func(*html.Node) (bool, error)) error {
	if root == nil {
		return ErrNilNode
	}

	recurse, err := task(root)
	if err != nil {
		return err
	}
	if !recurse {
		return nil
	}

	for child := root.FirstChild; child != nil; child = child.NextSibling {
		if err := ForEachNode(child, task); err != nil {
			return err
		}
	}
	return nil
}

// Attr returns the value of the named attribute, or "".
func Attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

// Links returns the absolute http(s) targets of every <a href> in body,
// deduplicated, in document order.
func Links(body string) ([]string, error) {
	root, err := Parse(strings.NewReader(body))
	if err != nil {
		return nil, err
	}

	seen := map[string]struct{}{}
	var links []string
	err = ForEachNode(root, func(n *html.Node) (bool, error) {
		if n.Type != html.ElementNode || n.DataAtom != atom.A {
			return true, nil
		}
		href := strings.TrimSpace(Attr(n, "href"))
		u, err := url.Parse(href)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return true, nil
		}
		if _, ok := seen[href]; !ok {
			seen[href] = struct{}{}
			links = append(links, href)
		}
		return true, nil
	})
	return links, err
}

// LinkRel returns the href of the first <link rel=rel> in the document.
func LinkRel(r io.Reader, rel string) (string, error) {
	root, err := Parse(r)
	if err != nil {
		return "", err
	}

	var href string
	err = ForEachNode(root, func(n *html.Node) (bool, error) {
		if href != "" {
			return false, nil
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Link {
			for _, v := range strings.Fields(Attr(n, "rel")) {
				if strings.EqualFold(v, rel) {
					href = strings.TrimSpace(Attr(n, "href"))
					return false, nil
				}
			}
		}
		return true, nil
	})
	return href, err
}

// Text extracts the visible text of an HTML fragment with whitespace runs
// collapsed to single spaces. Unparseable input is returned as is.
func Text(body string) string {
	root, err := Parse(strings.NewReader(body))
	if err != nil {
		return strings.Join(strings.Fields(body), " ")
	}

	var b strings.Builder
	_ = ForEachNode(root, func(n *html.Node) (bool, error) {
		switch n.Type {
		case html.ElementNode:
			if n.DataAtom == atom.Script || n.DataAtom == atom.Style {
				return false, nil
			}
		case html.TextNode:
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		return true, nil
	})
	return strings.Join(strings.Fields(b.String()), " ")
}

// Shorten cuts s to at most maxRunes runes, ending in "..." when cut, and
// prefers to break on a space.
func Shorten(s string, maxRunes int) string {
	const ellipsis = "..."
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	if maxRunes <= len(ellipsis) {
		return string([]rune(s)[:maxRunes])
	}

	cut := []rune(s)[:maxRunes-len(ellipsis)]
	out := string(cut)
	if i := strings.LastIndexByte(out, ' '); i > 0 {
		out = out[:i]
	}
	return strings.TrimRight(out, " ") + ellipsis
}
