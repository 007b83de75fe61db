package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<html><body>
<div id="js-repo-pjax-container">
  <div class="gh-header-show">
    <span class="js-issue-title"> Fixes bug: 100 </span>
    <span class="gh-header-number">#4099</span>
  </div>
  <a class="message">first</a>
  <div class="commit-desc"><pre>second <b>bold</b></pre></div>
</div>
</body></html>`

func TestQuery(t *testing.T) {
	doc, err := ParseString(samplePage)
	require.NoError(t, err)

	title, err := QueryFirst(doc, "span.js-issue-title")
	require.NoError(t, err)
	require.NotNil(t, title)
	assert.Equal(t, " Fixes bug: 100 ", Text(title))

	nodes, err := QueryAll(doc, "a.message, div.commit-desc pre")
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "first", Text(nodes[0]))
	assert.Equal(t, "second bold", Text(nodes[1]))

	missing, err := QueryFirst(doc, "div.nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = QueryFirst(doc, "div[")
	assert.Error(t, err)
}

func TestByID(t *testing.T) {
	doc, err := ParseString(samplePage)
	require.NoError(t, err)

	n := ByID(doc, "js-repo-pjax-container")
	require.NotNil(t, n)
	assert.Equal(t, "div", n.Data)
	assert.Nil(t, ByID(doc, "missing"))
}

func TestBuildAndRender(t *testing.T) {
	p := Element("p", "id", "c", "class", "subtext", "target", "")
	p.AppendChild(TextNode("a & b"))
	a := Element("a", "href", "#")
	a.AppendChild(TextNode("x"))
	p.AppendChild(a)

	out, err := Render(p)
	require.NoError(t, err)
	assert.Equal(t, `<p id="c" class="subtext">a &amp; b<a href="#">x</a></p>`, out)

	href, ok := Attr(a, "href")
	assert.True(t, ok)
	assert.Equal(t, "#", href)
	_, ok = Attr(a, "target")
	assert.False(t, ok)

	RemoveChildren(p)
	assert.Nil(t, p.FirstChild)

	parent := Element("div")
	child := Element("span")
	parent.AppendChild(child)
	Detach(child)
	assert.Nil(t, parent.FirstChild)
	Detach(child)
}
