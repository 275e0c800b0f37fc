package web

import (
	"html/template"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/yatube/internal/model"
	"github.com/d60-Lab/yatube/pkg/pagination"
)

func TestNewParsesEveryPage(t *testing.T) {
	r, err := New("/media/")
	require.NoError(t, err)
	for _, name := range []string{
		PageIndex, PageGroup, PageProfile, PagePostDetail, PageCreatePost, PageFollow,
		PageLogin, PageSignup, PageLoggedOut, PageAboutAuthor, PageAboutTech,
		PageNotFound, PageServerError,
	} {
		assert.True(t, r.Has(name), name)
	}
}

func TestRenderIndex(t *testing.T) {
	r, err := New("/media")
	require.NoError(t, err)

	posts := []*model.Post{{
		ID:        3,
		Text:      "first line\nsecond <b>line</b>",
		CreatedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Author:    model.User{Username: "leo", FirstName: "Leo"},
		Image:     "posts/x.gif",
	}}
	page := pagination.NewPage(pagination.New(12, 10, "1"), posts)

	w := httptest.NewRecorder()
	require.NoError(t, r.Instance(PageIndex, gin.H{"Page": page, "Year": 2024}).Render(w))
	body := w.Body.String()

	assert.Contains(t, body, `href="/posts/3/"`)
	assert.Contains(t, body, "first line<br>second &lt;b&gt;line&lt;/b&gt;")
	assert.Contains(t, body, `src="/media/posts/x.gif"`)
	assert.Contains(t, body, "1 May 2024")
	assert.Contains(t, body, `href="?page=2"`)
	assert.Contains(t, body, "Войти", "anonymous navigation")
}

func TestFuncs(t *testing.T) {
	f := Funcs("/m")
	assert.Equal(t, "/m/a.png", f["media"].(func(string) string)("a.png"))
	assert.Equal(t, "", f["media"].(func(string) string)(""))
	assert.Equal(t, "a b …", f["truncatewords"].(func(string, int) string)("a b c", 2))
	assert.Equal(t, template.HTML("x<br>y"), f["linebreaksbr"].(func(string) template.HTML)("x\r\ny"))
}
