// Package mangascans собирает закладки пользователя с manga-scans.com.
package mangascans

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"manga-bookmark-bot/internal/adapters/scraper"
	"manga-bookmark-bot/internal/domain"
	"manga-bookmark-bot/internal/infra/metrics"
)

// WebsiteName задаёт имя сайта в каталоге.
const WebsiteName = "manga-scans"

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

var (
	errLoginRejected = errors.New("login rejected")
	errNoLoginForm   = errors.New("login form not found")
)

// Client собирает закладки с manga-scans. Каждый вызов Scrape открывает отдельную сессию с собственными cookie.
// Лимит запросов общий для всех сессий клиента.
type Client struct {
	timeout time.Duration
	limiter *rate.Limiter
	now     func() time.Time
}

var _ domain.Scraper = (*Client)(nil)

// New создаёт адаптер. timeout ограничивает один HTTP-запрос.
func New(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		timeout: timeout,
		// не больше 2 запросов в секунду к сайту
		limiter: rate.NewLimiter(2, 2),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type session struct {
	http    *resty.Client
	base    *url.URL
	website string
}

func (c *Client) newSession(website domain.Website) (*session, error) {
	base, err := url.Parse(strings.TrimRight(website.Link, "/"))
	if err != nil || base.Host == "" {
		return nil, domain.NewScrapeFailure(domain.ScrapeParse, website.Name, fmt.Errorf("bad website link %q", website.Link))
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, domain.NewScrapeFailure(domain.ScrapeConnectivity, website.Name, err)
	}

	client := resty.New()
	client.SetBaseURL(base.String())
	client.SetCookieJar(jar)
	client.SetHeader("User-Agent", userAgent)
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(base.Hostname()))
	client.SetTimeout(c.timeout)
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return c.limiter.Wait(req.Context())
	})
	return &session{http: client, base: base, website: website.Name}, nil
}

// Scrape входит в аккаунт и возвращает закладки со страницы /bookmarks/.
func (c *Client) Scrape(ctx context.Context, website domain.Website, creds domain.Credentials) ([]domain.RawBookmark, error) {
	s, err := c.newSession(website)
	if err != nil {
		return nil, err
	}
	if err := s.login(ctx, creds); err != nil {
		return nil, err
	}
	doc, err := s.fetch(ctx, "bookmarks", "/bookmarks/")
	if err != nil {
		return nil, err
	}
	if doc.Find("#user_login").Length() > 0 {
		return nil, domain.NewScrapeFailure(domain.ScrapeAuth, s.website, errors.New("session is not authenticated"))
	}
	return s.parseBookmarks(doc, c.now())
}

func (s *session) login(ctx context.Context, creds domain.Credentials) error {
	doc, err := s.fetch(ctx, "login_page", "/login")
	if err != nil {
		return err
	}
	userField := doc.Find("#user_login")
	passField := doc.Find("#user_pass")
	if userField.Length() == 0 || passField.Length() == 0 {
		return domain.NewScrapeFailure(domain.ScrapeParse, s.website, errNoLoginForm)
	}
	form := userField.Closest("form")

	fields := map[string]string{}
	form.Find("input[type=hidden]").Each(func(_ int, input *goquery.Selection) {
		if name, ok := input.Attr("name"); ok && name != "" {
			fields[name] = input.AttrOr("value", "")
		}
	})
	if submit := form.Find("#wp-submit"); submit.Length() > 0 {
		if name, ok := submit.Attr("name"); ok && name != "" {
			fields[name] = submit.AttrOr("value", "")
		}
	}
	fields[userField.AttrOr("name", "log")] = creds.Login.Reveal()
	fields[passField.AttrOr("name", "pwd")] = creds.Password.Reveal()

	action := s.resolve(form.AttrOr("action", "/login"))
	start := time.Now()
	res, err := s.http.R().
		SetContext(ctx).
		SetFormData(fields).
		Post(action)
	metrics.ObserveNetworkRequest("scraper", "login", s.website, start, err)
	if err != nil {
		return domain.NewScrapeFailure(domain.ScrapeConnectivity, s.website, err)
	}
	if err := s.checkStatus(res); err != nil {
		return err
	}

	after, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		return domain.NewScrapeFailure(domain.ScrapeParse, s.website, err)
	}
	if after.Find("#login_error").Length() > 0 || after.Find("#user_login").Length() > 0 {
		return domain.NewScrapeFailure(domain.ScrapeAuth, s.website, errLoginRejected)
	}
	return nil
}

func (s *session) fetch(ctx context.Context, op, path string) (*goquery.Document, error) {
	start := time.Now()
	res, err := s.http.R().
		SetContext(ctx).
		Get(path)
	metrics.ObserveNetworkRequest("scraper", op, s.website, start, err)
	if err != nil {
		return nil, domain.NewScrapeFailure(domain.ScrapeConnectivity, s.website, err)
	}
	if err := s.checkStatus(res); err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		return nil, domain.NewScrapeFailure(domain.ScrapeParse, s.website, err)
	}
	return doc, nil
}

func (s *session) checkStatus(res *resty.Response) error {
	code := res.StatusCode()
	switch {
	case code >= http.StatusInternalServerError:
		return domain.NewScrapeFailure(domain.ScrapeConnectivity, s.website, fmt.Errorf("unexpected status %d", code))
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return domain.NewScrapeFailure(domain.ScrapeAuth, s.website, fmt.Errorf("unexpected status %d", code))
	case code >= http.StatusBadRequest:
		return domain.NewScrapeFailure(domain.ScrapeParse, s.website, fmt.Errorf("unexpected status %d", code))
	}
	return nil
}

func (s *session) parseBookmarks(doc *goquery.Document, now time.Time) ([]domain.RawBookmark, error) {
	var (
		out      []domain.RawBookmark
		parseErr error
	)
	doc.Find(".unit").EachWithBreak(func(i int, unit *goquery.Selection) bool {
		anchor := unit.Find(".info > a").First()
		title := strings.TrimSpace(anchor.Text())
		link, ok := anchor.Attr("href")
		if anchor.Length() == 0 || title == "" || !ok {
			parseErr = domain.NewScrapeFailure(domain.ScrapeParse, s.website, fmt.Errorf("bookmark %d has no title link", i))
			return false
		}

		chapter := unit.Find(".richdata").First()
		raw := domain.RawBookmark{
			Title:        title,
			TitleLink:    s.resolve(link),
			ImageURL:     s.resolveOptional(unit.Find(".poster img").AttrOr("src", "")),
			ChapterTitle: strings.TrimSpace(chapter.Text()),
			ChapterLink:  s.resolveOptional(chapter.AttrOr("href", "")),
			UpdatedAt:    scraper.ParseRelativeTime(unit.Find(".dropdown").First().Text(), now),
		}
		out = append(out, raw)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return out, nil
}

func (s *session) resolve(ref string) string {
	parsed, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ref
	}
	return s.base.ResolveReference(parsed).String()
}

func (s *session) resolveOptional(ref string) string {
	if strings.TrimSpace(ref) == "" {
		return ""
	}
	return s.resolve(ref)
}
