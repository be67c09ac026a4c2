package lwn

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"lwncomments/lib/htmlutil"
	"lwncomments/lib/textutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultPageSize = 100

	listingPrefix = "/MyComments/"
	bodySelector  = "div.CommentBody"
)

var (
	ErrNoCommentBody        = fmt.Errorf("no comment body on page")
	ErrAmbiguousCommentBody = fmt.Errorf("more than one comment body on page")
)

// FragmentStore is the cache consulted before fetching a comment page.
// Get reports a miss with its second return value; a miss is an
// instruction to fetch, not an error.
type FragmentStore interface {
	Get(id string) (string, bool)
	Put(id, fragment string)
}

// isCommentRef reports whether an anchor's visible text names a comment:
// a non-empty string of decimal digits.
func isCommentRef(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// FetchComments walks the account's comment listing page by page. For
// every comment entry it writes the comment's absolute URL, the quoted
// comment text and a blank separator line to out. Fragments already in
// the store are not fetched again; fresh fetches are written back to it.
// Pagination follows the listing's "Next" links and stops at the first
// page without one.
func (c *Client) FetchComments(ctx context.Context, store FragmentStore, out io.Writer, pageSize int) error {
	ctx, span := tracer.Start(ctx, "client:FetchComments")
	defer span.End()

	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	next := fmt.Sprintf("%s?n=%d", listingPrefix, pageSize)
	for next != "" {
		page := next
		next = ""

		res, err := c.Http.R().
			SetContext(ctx).
			Get(page)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to fetch listing page")
			return err
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to parse listing page html")
			return err
		}

		for _, anchor := range htmlutil.GetAnchors(ctx, doc.Find("a")) {
			if isCommentRef(anchor.Name) {
				if err := c.emitComment(ctx, store, out, anchor); err != nil {
					return err
				}
				continue
			}
			if !strings.HasPrefix(anchor.Name, "Next") {
				continue
			}
			link, err := anchor.Resolve(c.BaseUrl)
			if err != nil || !strings.HasPrefix(link.Path, listingPrefix) {
				continue
			}
			next = link.String()
		}
	}

	return nil
}

func (c *Client) emitComment(ctx context.Context, store FragmentStore, out io.Writer, anchor htmlutil.Anchor) error {
	ctx, span := tracer.Start(ctx, "client:emitComment")
	defer span.End()
	span.SetAttributes(attribute.String("comment_id", anchor.Name))

	link, err := anchor.Resolve(c.BaseUrl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to resolve comment url")
		return err
	}
	fmt.Fprintln(out, link.String())

	fragment, ok := store.Get(anchor.Name)
	if !ok {
		fragment, err = c.fetchFragment(ctx, link.String())
		if err != nil {
			return fmt.Errorf("comment %s: %w", anchor.Name, err)
		}
		store.Put(anchor.Name, fragment)
	} else {
		span.AddEvent("cache hit")
	}

	text, err := textutil.HTMLToText(fragment, link.String())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to convert comment html")
		return fmt.Errorf("comment %s: %w", anchor.Name, err)
	}
	text = textutil.StripFooter(text)

	fmt.Fprint(out, textutil.Quote(text))
	fmt.Fprintln(out)
	return nil
}

func (c *Client) fetchFragment(ctx context.Context, commentUrl string) (string, error) {
	ctx, span := tracer.Start(ctx, "client:fetchFragment")
	defer span.End()

	res, err := c.Http.R().
		SetContext(ctx).
		Get(commentUrl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch comment page")
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse comment page html")
		return "", err
	}

	sel := doc.Find(bodySelector)
	switch len(sel.Nodes) {
	case 0:
		span.SetStatus(codes.Error, ErrNoCommentBody.Error())
		return "", ErrNoCommentBody
	case 1:
	default:
		span.SetStatus(codes.Error, ErrAmbiguousCommentBody.Error())
		return "", ErrAmbiguousCommentBody
	}

	fragment, err := sel.First().Html()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to serialize comment body")
		return "", err
	}
	return fragment, nil
}
