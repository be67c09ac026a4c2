package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	require.Equal(t, "login", NormalizeName("  Log  in \n"))
	require.Equal(t, "logintolwn.net", NormalizeName("Log in to LWN.net"))
	require.Equal(t, "nextcomments", NormalizeName("Next\tcomments"))
}

func TestHTMLToText(t *testing.T) {
	text, err := HTMLToText(
		`<p>First paragraph with a <a href="/Articles/1/">link</a>.</p><p>Second.</p>`,
		"https://lwn.net/Articles/101/",
	)
	require.NoError(t, err)
	require.Contains(t, text, "First paragraph with a [link](https://lwn.net/Articles/1/).")
	require.Contains(t, text, "Second.")
}

func TestStripFooter(t *testing.T) {
	require.Equal(t,
		"The comment body.",
		StripFooter("The comment body.\n\n(Log in to post comments)"))
	require.Equal(t,
		"The comment body.",
		StripFooter("The comment body.\n\n\\(Log in to post comments\\)\n\ntrailing cruft"))
	require.Equal(t,
		"No footer here.",
		StripFooter("No footer here."))
}

func TestStripFooterKeepsQuotedMarkerMidBody(t *testing.T) {
	// only the final marker is the footer; a body quoting the phrase
	// keeps everything up to the real one
	got := StripFooter("I clicked (Log in to post comments) and nothing happened.\n\nMore thoughts here.\n\n(Log in to post comments)")
	require.Equal(t,
		"I clicked (Log in to post comments) and nothing happened.\n\nMore thoughts here.",
		got)
}

func TestQuote(t *testing.T) {
	require.Equal(t, "> one\n> \n> two\n", Quote("one\n\ntwo\n"))
	require.Equal(t, "> single\n", Quote("single"))
	require.Equal(t, "", Quote(""))
	require.Equal(t, "", Quote("\n\n"))
}
