package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"astro-union/config"
	"astro-union/internal/model"
)

// ── Google Calendar v3 REST 实现 ──

const (
	tokenRefreshMargin = time.Minute
	maxErrorBodySize   = 4 * 1024
)

// TokenPersistFunc 凭证刷新后的持久化回调
type TokenPersistFunc func(ctx context.Context, accessToken, refreshToken string, expiry *time.Time) error

// Factory 按日历账户构建网关实例
type Factory struct {
	cfg      *config.GoogleConfig
	timezone string
	client   *http.Client
	logger   *zap.Logger
}

// NewFactory 创建网关工厂
func NewFactory(cfg *config.GoogleConfig, timezone string, logger *zap.Logger) *Factory {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Factory{
		cfg:      cfg,
		timezone: timezone,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// ForAccount 为指定账户构建网关；凭证不可用时返回 error
func (f *Factory) ForAccount(account *model.CalendarAccount, persist TokenPersistFunc) (CalendarGateway, error) {
	if !account.HasCredentials() {
		return nil, fmt.Errorf("账户 %s 缺少可用的日历凭证", account.AccountID)
	}
	c := &googleClient{
		httpClient:   f.client,
		baseURL:      strings.TrimRight(f.cfg.APIBaseURL, "/"),
		tokenURL:     f.cfg.TokenURL,
		clientID:     f.cfg.ClientID,
		clientSecret: f.cfg.ClientSecret,
		timezone:     f.timezone,
		calendarID:   account.CalendarID,
		accessToken:  account.AccessToken,
		refreshToken: account.RefreshToken,
		persist:      persist,
		logger:       f.logger.With(zap.String("account_id", account.AccountID)),
	}
	if account.TokenExpiry != nil {
		c.tokenExpiry = *account.TokenExpiry
	}
	return c, nil
}

type googleClient struct {
	httpClient   *http.Client
	baseURL      string
	tokenURL     string
	clientID     string
	clientSecret string
	timezone     string
	calendarID   string
	accessToken  string
	refreshToken string
	tokenExpiry  time.Time
	persist      TokenPersistFunc
	logger       *zap.Logger
}

// ── 事件资源的 JSON 结构 ──

type eventTime struct {
	Date     string `json:"date,omitempty"`
	DateTime string `json:"dateTime,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

type eventResource struct {
	ID          string     `json:"id,omitempty"`
	Status      string     `json:"status,omitempty"`
	Summary     string     `json:"summary,omitempty"`
	Description string     `json:"description,omitempty"`
	ColorID     string     `json:"colorId,omitempty"`
	Start       *eventTime `json:"start,omitempty"`
	End         *eventTime `json:"end,omitempty"`
	Recurrence  []string   `json:"recurrence,omitempty"`
	Extended    *struct {
		Private map[string]string `json:"private,omitempty"`
	} `json:"extendedProperties,omitempty"`
}

func (c *googleClient) Get(ctx context.Context, externalID string) (*EventSnapshot, error) {
	var res eventResource
	err := c.do(ctx, http.MethodGet, c.eventURL(externalID), nil, &res)
	if err != nil {
		return nil, err
	}
	// Google 对已删除事件可能返回 200 + status=cancelled
	if res.Status == "cancelled" {
		return nil, ErrEventNotFound
	}

	snapshot := &EventSnapshot{
		ExternalID:  res.ID,
		Summary:     res.Summary,
		Description: res.Description,
		ColorCode:   res.ColorID,
	}
	if res.Start != nil {
		if res.Start.DateTime != "" {
			if t, err := time.Parse(time.RFC3339, res.Start.DateTime); err == nil {
				snapshot.Start = t
			}
		} else if res.Start.Date != "" {
			if t, err := time.Parse("2006-01-02", res.Start.Date); err == nil {
				snapshot.Start = t
			}
		}
	}
	for _, r := range res.Recurrence {
		if strings.HasPrefix(r, "RRULE:") {
			snapshot.Rule = strings.TrimPrefix(r, "RRULE:")
			break
		}
	}
	return snapshot, nil
}

func (c *googleClient) CreateRecurring(ctx context.Context, input RecurringEventInput) (string, error) {
	body := eventResource{
		Summary:     input.Summary,
		Description: input.Description,
		ColorID:     input.ColorCode,
		Start:       &eventTime{DateTime: input.Start.Format(time.RFC3339), TimeZone: c.timezone},
		End:         &eventTime{DateTime: input.End.Format(time.RFC3339), TimeZone: c.timezone},
		Recurrence:  []string{"RRULE:" + input.Rule},
	}
	if len(input.Metadata) > 0 {
		body.Extended = &struct {
			Private map[string]string `json:"private,omitempty"`
		}{Private: input.Metadata}
	}

	var res eventResource
	if err := c.do(ctx, http.MethodPost, c.eventsURL(), body, &res); err != nil {
		return "", err
	}
	return res.ID, nil
}

func (c *googleClient) CreateAllDay(ctx context.Context, input AllDayEventInput) (string, error) {
	body := eventResource{
		Summary:     input.Summary,
		Description: input.Description,
		Start:       &eventTime{Date: input.StartDate.Format("2006-01-02")},
		End:         &eventTime{Date: input.EndDate.Format("2006-01-02")},
	}

	var res eventResource
	if err := c.do(ctx, http.MethodPost, c.eventsURL(), body, &res); err != nil {
		return "", err
	}
	return res.ID, nil
}

func (c *googleClient) Update(ctx context.Context, externalID string, fields UpdateFields) error {
	if fields.IsEmpty() {
		return nil
	}
	// PATCH 仅携带变化字段
	patch := map[string]interface{}{}
	if fields.Summary != nil {
		patch["summary"] = *fields.Summary
	}
	if fields.Description != nil {
		patch["description"] = *fields.Description
	}
	if fields.ColorCode != nil {
		patch["colorId"] = *fields.ColorCode
	}
	return c.do(ctx, http.MethodPatch, c.eventURL(externalID), patch, nil)
}

func (c *googleClient) Delete(ctx context.Context, externalID string) error {
	err := c.do(ctx, http.MethodDelete, c.eventURL(externalID), nil, nil)
	if err == ErrEventNotFound {
		return nil
	}
	return err
}

// ── HTTP 基础设施 ──

func (c *googleClient) eventsURL() string {
	return fmt.Sprintf("%s/calendars/%s/events", c.baseURL, url.PathEscape(c.calendarID))
}

func (c *googleClient) eventURL(externalID string) string {
	return fmt.Sprintf("%s/%s", c.eventsURL(), url.PathEscape(externalID))
}

func (c *googleClient) do(ctx context.Context, method, rawURL string, body, out interface{}) error {
	if err := c.ensureToken(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("序列化请求体失败: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransientError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		io.Copy(io.Discard, resp.Body)
		return ErrEventNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return &TransientError{Err: fmt.Errorf("HTTP %d: %s", resp.StatusCode, detail)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return fmt.Errorf("外部日历请求失败 HTTP %d: %s", resp.StatusCode, detail)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("解析外部日历响应失败: %w", err)
		}
	} else {
		io.Copy(io.Discard, resp.Body)
	}
	return nil
}

// ensureToken 在 Access Token 临期/缺失时用 Refresh Token 换取新凭证
func (c *googleClient) ensureToken(ctx context.Context) error {
	if c.accessToken != "" && (c.tokenExpiry.IsZero() || time.Now().Add(tokenRefreshMargin).Before(c.tokenExpiry)) {
		return nil
	}
	if c.refreshToken == "" {
		return fmt.Errorf("access token 已过期且无 refresh token")
	}

	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("refresh_token", c.refreshToken)
	form.Set("grant_type", "refresh_token")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransientError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return fmt.Errorf("刷新 token 失败 HTTP %d: %s", resp.StatusCode, detail)
	}

	var token struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return fmt.Errorf("解析 token 响应失败: %w", err)
	}

	c.accessToken = token.AccessToken
	expiry := time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	c.tokenExpiry = expiry

	if c.persist != nil {
		if err := c.persist(ctx, c.accessToken, c.refreshToken, &expiry); err != nil {
			// 凭证已在内存中生效，持久化失败只影响下次进程启动
			c.logger.Warn("持久化刷新后的凭证失败", zap.Error(err))
		}
	}
	c.logger.Debug("access token 已刷新")
	return nil
}
