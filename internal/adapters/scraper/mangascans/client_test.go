package mangascans

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"manga-bookmark-bot/internal/domain"
)

const loginPage = `<html><body>
<form name="loginform" id="loginform" action="/wp-login.php" method="post">
  <input type="text" name="log" id="user_login">
  <input type="password" name="pwd" id="user_pass">
  <input type="submit" name="wp-submit" id="wp-submit" value="Log In">
  <input type="hidden" name="redirect_to" value="/bookmarks/">
  <input type="hidden" name="testcookie" value="1">
</form>
</body></html>`

const loginErrorPage = `<html><body><div id="login_error">Incorrect password.</div>` + loginPage + `</body></html>`

const bookmarksPage = `<html><body>
<div class="unit">
  <div class="poster"><img src="/covers/solo.png"></div>
  <div class="info"><a href="/manga/solo-leveling/">Solo Leveling</a></div>
  <a class="richdata" href="/manga/solo-leveling/chapter-181/">Chapter 181</a>
  <span class="dropdown">2 hours ago</span>
</div>
<div class="unit">
  <div class="poster"><img src="https://cdn.example.com/berserk.png"></div>
  <div class="info"><a href="/manga/berserk/">Berserk</a></div>
  <a class="richdata" href="/manga/berserk/chapter-370/">Chapter 370</a>
  <span class="dropdown"></span>
</div>
</body></html>`

type site struct {
	password  string
	bookmarks string
	status    int
}

func (s *site) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if s.status != 0 {
			w.WriteHeader(s.status)
			return
		}
		_, _ = w.Write([]byte(loginPage))
	})
	mux.HandleFunc("/wp-login.php", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "1", r.PostForm.Get("testcookie"))
		require.Equal(t, "reader", r.PostForm.Get("log"))
		if r.PostForm.Get("pwd") != s.password {
			_, _ = w.Write([]byte(loginErrorPage))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "wordpress_logged_in", Value: "ok", Path: "/"})
		http.Redirect(w, r, "/bookmarks/", http.StatusFound)
	})
	mux.HandleFunc("/bookmarks/", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("wordpress_logged_in"); err != nil {
			_, _ = w.Write([]byte(loginPage))
			return
		}
		_, _ = w.Write([]byte(s.bookmarks))
	})
	return mux
}

func newSite(t *testing.T, s *site) domain.Website {
	t.Helper()
	srv := httptest.NewServer(s.handler(t))
	t.Cleanup(srv.Close)
	return domain.Website{ID: 1, Name: WebsiteName, Link: srv.URL}
}

func creds(password string) domain.Credentials {
	return domain.Credentials{Login: domain.NewSecret("reader"), Password: domain.NewSecret(password)}
}

func scrapeKind(t *testing.T, err error) domain.ScrapeKind {
	t.Helper()
	var failure *domain.ScrapeFailure
	require.True(t, errors.As(err, &failure), "ожидали ScrapeFailure, получили %v", err)
	return failure.Kind
}

func TestScrapeBookmarks(t *testing.T) {
	website := newSite(t, &site{password: "hunter2", bookmarks: bookmarksPage})
	now := time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)
	client := New(5 * time.Second)
	client.now = func() time.Time { return now }

	list, err := client.Scrape(context.Background(), website, creds("hunter2"))
	require.NoError(t, err)
	require.Len(t, list, 2)

	solo := list[0]
	require.Equal(t, "Solo Leveling", solo.Title)
	require.Equal(t, website.Link+"/manga/solo-leveling/", solo.TitleLink)
	require.Equal(t, website.Link+"/covers/solo.png", solo.ImageURL)
	require.Equal(t, "Chapter 181", solo.ChapterTitle)
	require.Equal(t, website.Link+"/manga/solo-leveling/chapter-181/", solo.ChapterLink)
	require.NotNil(t, solo.UpdatedAt)
	require.True(t, now.Add(-2*time.Hour).Equal(*solo.UpdatedAt))

	berserk := list[1]
	require.Equal(t, "https://cdn.example.com/berserk.png", berserk.ImageURL)
	require.Nil(t, berserk.UpdatedAt)
}

func TestScrapeWrongPassword(t *testing.T) {
	website := newSite(t, &site{password: "hunter2", bookmarks: bookmarksPage})
	_, err := New(5*time.Second).Scrape(context.Background(), website, creds("wrong"))
	require.Equal(t, domain.ScrapeAuth, scrapeKind(t, err))
}

func TestScrapeServerError(t *testing.T) {
	website := newSite(t, &site{status: http.StatusBadGateway})
	_, err := New(5*time.Second).Scrape(context.Background(), website, creds("hunter2"))
	require.Equal(t, domain.ScrapeConnectivity, scrapeKind(t, err))
}

func TestScrapeUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	link := srv.URL
	srv.Close()
	_, err := New(time.Second).Scrape(context.Background(), domain.Website{Name: WebsiteName, Link: link}, creds("x"))
	require.Equal(t, domain.ScrapeConnectivity, scrapeKind(t, err))
}

func TestScrapeBrokenMarkup(t *testing.T) {
	broken := `<html><body><div class="unit"><div class="info"><span>no link</span></div></div></body></html>`
	website := newSite(t, &site{password: "hunter2", bookmarks: broken})
	_, err := New(5*time.Second).Scrape(context.Background(), website, creds("hunter2"))
	require.Equal(t, domain.ScrapeParse, scrapeKind(t, err))
}

func TestScrapeCancelledContext(t *testing.T) {
	website := newSite(t, &site{password: "hunter2", bookmarks: bookmarksPage})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(5*time.Second).Scrape(ctx, website, creds("hunter2"))
	require.Equal(t, domain.ScrapeConnectivity, scrapeKind(t, err))
}
