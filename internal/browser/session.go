package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mitto/internal/common"
	"github.com/ternarybob/mitto/internal/interfaces"
)

// Session acquires an authenticated platform session: persisted cookies are
// replayed first, a fresh form login is the fallback. The cookie file is the
// only state owned outside the queue.
type Session struct {
	chrome      *Chrome
	platform    *common.PlatformConfig
	waitTimeout time.Duration
	logger      arbor.ILogger
}

var _ interfaces.SessionProvider = (*Session)(nil)

// storedCookie is the persisted cookie form, decoupled from the devtools
// protocol types so the file survives cdproto upgrades.
type storedCookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	Secure   bool    `json:"secure"`
	HTTPOnly bool    `json:"http_only"`
}

// NewSession creates a session provider bound to the run's browser.
func NewSession(chrome *Chrome, platform *common.PlatformConfig, waitTimeout time.Duration, logger arbor.ILogger) *Session {
	return &Session{
		chrome:      chrome,
		platform:    platform,
		waitTimeout: waitTimeout,
		logger:      logger,
	}
}

// EnsureAuthenticated leaves the browser logged in or returns an error.
func (s *Session) EnsureAuthenticated(ctx context.Context) error {
	if err := s.loadCookies(ctx); err == nil {
		if err := s.chrome.Navigate(ctx, s.platform.BaseURL); err == nil {
			if ok, _ := s.loggedIn(ctx); ok {
				s.logger.Debug().Msg("Authenticated via saved cookies")
				return nil
			}
		}
		s.logger.Debug().Msg("Saved cookies expired, performing fresh login")
	}

	if err := s.login(ctx); err != nil {
		return err
	}

	if err := s.saveCookies(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to persist session cookies")
	}
	return nil
}

func (s *Session) login(ctx context.Context) error {
	loginURL := strings.TrimRight(s.platform.BaseURL, "/") + "/login/"

	s.logger.Debug().Str("url", loginURL).Msg("Performing fresh login")
	if err := s.chrome.Navigate(ctx, loginURL); err != nil {
		return err
	}

	if err := s.chrome.WaitVisible(ctx, "#nick, input[name='nick']", s.waitTimeout); err != nil {
		return fmt.Errorf("login form did not appear: %w", err)
	}

	if err := s.chrome.SendKeys(ctx, "#nick, input[name='nick']", s.platform.LoginNick); err != nil {
		return err
	}
	if err := s.chrome.SendKeys(ctx, "#pass, input[name='pass']", s.platform.LoginPass); err != nil {
		return err
	}
	if err := s.chrome.Click(ctx, "button[type='submit']"); err != nil {
		return err
	}

	// The platform redirects away from /login/ on success.
	deadline := time.Now().Add(s.waitTimeout)
	for time.Now().Before(deadline) {
		if ok, err := s.loggedIn(ctx); err == nil && ok {
			s.logger.Debug().Msg("Fresh login successful")
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}

	return fmt.Errorf("login failed: still on the login page after submit")
}

func (s *Session) loggedIn(ctx context.Context) (bool, error) {
	location, err := s.chrome.CurrentURL(ctx)
	if err != nil {
		return false, err
	}
	lower := strings.ToLower(location)
	return !strings.Contains(lower, "login") && !strings.Contains(lower, "signup"), nil
}

// HTTPCookies exports the browser's current cookies in net/http form so
// requests made outside the browser can share the authenticated session.
func (s *Session) HTTPCookies(ctx context.Context) ([]*http.Cookie, error) {
	runCtx, cancel := s.chrome.bounded(ctx, s.waitTimeout)
	defer cancel()

	var cookies []*network.Cookie
	err := chromedp.Run(runCtx,
		network.Enable(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = network.GetCookies().Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}

	out := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		})
	}
	return out, nil
}

func (s *Session) saveCookies(ctx context.Context) error {
	runCtx, cancel := s.chrome.bounded(ctx, s.waitTimeout)
	defer cancel()

	var cookies []*network.Cookie
	err := chromedp.Run(runCtx,
		network.Enable(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = network.GetCookies().Do(ctx)
			return err
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to read cookies: %w", err)
	}

	stored := make([]storedCookie, 0, len(cookies))
	for _, c := range cookies {
		stored = append(stored, storedCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		})
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to encode cookies: %w", err)
	}
	if err := os.WriteFile(s.platform.CookieFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write cookie file: %w", err)
	}

	s.logger.Debug().Int("cookies", len(stored)).Str("file", s.platform.CookieFile).Msg("Session cookies saved")
	return nil
}

func (s *Session) loadCookies(ctx context.Context) error {
	data, err := os.ReadFile(s.platform.CookieFile)
	if err != nil {
		return err
	}

	var stored []storedCookie
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("failed to decode cookie file: %w", err)
	}
	if len(stored) == 0 {
		return fmt.Errorf("cookie file is empty")
	}

	params := make([]*network.CookieParam, 0, len(stored))
	for _, c := range stored {
		param := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if c.Expires > 0 {
			expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			param.Expires = &expires
		}
		params = append(params, param)
	}

	runCtx, cancel := s.chrome.bounded(ctx, s.waitTimeout)
	defer cancel()

	err = chromedp.Run(runCtx,
		network.Enable(),
		network.SetCookies(params),
	)
	if err != nil {
		return fmt.Errorf("failed to set cookies: %w", err)
	}

	s.logger.Debug().Int("cookies", len(params)).Msg("Session cookies loaded")
	return nil
}
