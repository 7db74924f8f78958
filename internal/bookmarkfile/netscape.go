// Package bookmarkfile reads the Netscape bookmark HTML format that every
// browser exports.
package bookmarkfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"marksweep/internal/models"
)

// ErrNoBookmarks is returned when the document contains no folder list.
var ErrNoBookmarks = errors.New("bookmarkfile: no bookmark list found")

// ParseFile parses the export at path.
func ParseFile(path string) ([]*models.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open bookmark file: %w", err)
	}
	data, err = cleanExport(data, path)
	if err != nil {
		return nil, err
	}
	return Parse(bytes.NewReader(data))
}

// Parse returns the top-level entries of a Netscape bookmark document. Node IDs
// are left empty; the store assigns them on import.
func Parse(r io.Reader) ([]*models.Node, error) {
	z := html.NewTokenizer(r)

	root := &models.Node{}
	var stack []*models.Node
	var pendingFolder *models.Node
	sawList := false

	current := func() *models.Node {
		if len(stack) == 0 {
			return root
		}
		return stack[len(stack)-1]
	}

	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return nil, fmt.Errorf("parse bookmark file: %w", err)
			}
			if !sawList {
				return nil, ErrNoBookmarks
			}
			return root.Children, nil

		case html.StartTagToken:
			tok := z.Token()
			switch tok.DataAtom {
			case atom.Dl:
				if !sawList {
					sawList = true
					stack = append(stack, root)
					continue
				}
				if pendingFolder != nil {
					stack = append(stack, pendingFolder)
					pendingFolder = nil
				} else {
					// An unnamed nested list still needs a matching pop.
					stack = append(stack, current())
				}

			case atom.H3:
				folder := &models.Node{Title: cleanTitle(readText(z, atom.H3)), DateAdded: addDate(tok)}
				parent := current()
				folder.Index = len(parent.Children)
				parent.Children = append(parent.Children, folder)
				pendingFolder = folder

			case atom.A:
				href := attr(tok, "href")
				title := cleanTitle(readText(z, atom.A))
				if href == "" {
					continue
				}
				parent := current()
				parent.Children = append(parent.Children, &models.Node{
					Title:     title,
					URL:       href,
					Index:     len(parent.Children),
					DateAdded: addDate(tok),
				})
			}

		case html.EndTagToken:
			if tok := z.Token(); tok.DataAtom == atom.Dl && len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
}

// readText collects the text up to the closing tag of a.
func readText(z *html.Tokenizer, a atom.Atom) string {
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.Write(z.Text())
		case html.EndTagToken:
			if z.Token().DataAtom == a {
				return b.String()
			}
		}
	}
}

func attr(tok html.Token, name string) string {
	for _, a := range tok.Attr {
		if strings.EqualFold(a.Key, name) {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

// addDate reads ADD_DATE, which is seconds since the epoch.
func addDate(tok html.Token) time.Time {
	secs, err := strconv.ParseInt(attr(tok, "add_date"), 10, 64)
	if err != nil || secs <= 0 {
		return time.Time{}
	}
	return time.Unix(secs, 0).UTC()
}
