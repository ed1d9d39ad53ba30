// Package extract pulls article text out of fetched HTML.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Errors returned by Text.
var (
	ErrEmptyContentClass = errors.New("content class is empty")
	ErrNoMatches         = errors.New("no elements match content class")
)

// Selector turns a content class into a CSS selector that matches elements
// carrying every whitespace separated class name, compared token by token the
// way the class attribute is. Names are quoted, so values such as "md:prose"
// or "w-[100px]" are matched literally.
func Selector(contentClass string) (string, error) {
	names := strings.Fields(contentClass)
	if len(names) == 0 {
		return "", ErrEmptyContentClass
	}

	var sb strings.Builder
	for _, name := range names {
		sb.WriteString(`[class~="`)
		sb.WriteString(classQuoter.Replace(name))
		sb.WriteString(`"]`)
	}
	return sb.String(), nil
}

var classQuoter = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// looksLikeSelector reports whether contentClass may have been written as a
// CSS selector rather than a class name.
func looksLikeSelector(contentClass string) bool {
	return strings.ContainsAny(contentClass, ".#[>:")
}

// Text returns the concatenated text of every element carrying contentClass,
// in document order, together with the number of matched elements. When no
// element carries the class and the value looks like a CSS selector, it is
// tried as one.
func Text(html []byte, contentClass string) (string, int, error) {
	selector, err := Selector(contentClass)
	if err != nil {
		return "", 0, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", 0, fmt.Errorf("failed to parse html: %w", err)
	}

	// Selectors that fail to compile match nothing.
	selection := doc.Find(selector)
	if selection.Length() == 0 && looksLikeSelector(contentClass) {
		selection = doc.Find(strings.TrimSpace(contentClass))
	}
	if selection.Length() == 0 {
		return "", 0, fmt.Errorf("%w: %s", ErrNoMatches, contentClass)
	}

	var sb strings.Builder
	selection.Each(func(_ int, s *goquery.Selection) {
		sb.WriteString(s.Text())
	})

	return sb.String(), selection.Length(), nil
}
