package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"astro-union/internal/gateway"
	"astro-union/internal/model"
)

// ── Mock TenantRepository ──

type mockTenantRepo struct {
	tenants map[string]*model.Tenant
}

func newMockTenantRepo() *mockTenantRepo {
	return &mockTenantRepo{tenants: make(map[string]*model.Tenant)}
}

func (m *mockTenantRepo) Create(_ context.Context, tenant *model.Tenant) error {
	m.tenants[tenant.TenantID] = tenant
	return nil
}

func (m *mockTenantRepo) GetByID(_ context.Context, id string) (*model.Tenant, error) {
	if t, ok := m.tenants[id]; ok {
		return t, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTenantRepo) ListActive(_ context.Context) ([]model.Tenant, error) {
	var result []model.Tenant
	for _, t := range m.tenants {
		if t.IsActive {
			result = append(result, *t)
		}
	}
	return result, nil
}

func (m *mockTenantRepo) Update(_ context.Context, tenant *model.Tenant) error {
	m.tenants[tenant.TenantID] = tenant
	return nil
}

// ── Mock CalendarAccountRepository ──

type mockAccountRepo struct {
	accounts map[string]*model.CalendarAccount
}

func newMockAccountRepo() *mockAccountRepo {
	return &mockAccountRepo{accounts: make(map[string]*model.CalendarAccount)}
}

func (m *mockAccountRepo) Create(_ context.Context, account *model.CalendarAccount) error {
	if account.AccountID == "" {
		account.AccountID = "acc-" + account.Label
	}
	m.accounts[account.AccountID] = account
	return nil
}

func (m *mockAccountRepo) GetByID(_ context.Context, id string) (*model.CalendarAccount, error) {
	if a, ok := m.accounts[id]; ok {
		return a, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAccountRepo) ListActiveByTenant(_ context.Context, tenantID string) ([]model.CalendarAccount, error) {
	var result []model.CalendarAccount
	for _, a := range m.accounts {
		if a.TenantID == tenantID && a.IsActive {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (m *mockAccountRepo) Update(_ context.Context, account *model.CalendarAccount) error {
	m.accounts[account.AccountID] = account
	return nil
}

func (m *mockAccountRepo) UpdateTokens(_ context.Context, id, accessToken, refreshToken string, expiry *time.Time) error {
	a, ok := m.accounts[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	a.AccessToken = accessToken
	if refreshToken != "" {
		a.RefreshToken = refreshToken
	}
	a.TokenExpiry = expiry
	return nil
}

func (m *mockAccountRepo) Deactivate(_ context.Context, id string) error {
	if a, ok := m.accounts[id]; ok {
		a.IsActive = false
	}
	return nil
}

// ── Mock EventRecordRepository ──

type mockEventRepo struct {
	records map[string]*model.EventRecord

	failUpdateMappings bool // 模拟重建后台账写回失败
	mappingUpdates     int
}

func newMockEventRepo() *mockEventRepo {
	return &mockEventRepo{records: make(map[string]*model.EventRecord)}
}

func (m *mockEventRepo) Create(_ context.Context, record *model.EventRecord) error {
	if record.EventID == "" {
		record.EventID = "evt-" + record.Name
	}
	m.records[record.EventID] = record
	return nil
}

func (m *mockEventRepo) GetByID(_ context.Context, id string) (*model.EventRecord, error) {
	if r, ok := m.records[id]; ok {
		return r, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockEventRepo) ListActiveByTenant(_ context.Context, tenantID string) ([]model.EventRecord, error) {
	var result []model.EventRecord
	for _, r := range m.records {
		if r.TenantID == tenantID && r.IsActive {
			result = append(result, *r)
		}
	}
	return result, nil
}

func (m *mockEventRepo) ListActiveByOwner(_ context.Context, tenantID, ownerID string) ([]model.EventRecord, error) {
	var result []model.EventRecord
	for _, r := range m.records {
		if r.TenantID == tenantID && r.OwnerID == ownerID && r.IsActive {
			result = append(result, *r)
		}
	}
	return result, nil
}

func (m *mockEventRepo) SearchByName(_ context.Context, tenantID, name string) ([]model.EventRecord, error) {
	var result []model.EventRecord
	for _, r := range m.records {
		if r.TenantID == tenantID && r.IsActive && strings.Contains(r.Name, name) {
			result = append(result, *r)
		}
	}
	return result, nil
}

func (m *mockEventRepo) Update(_ context.Context, record *model.EventRecord) error {
	m.records[record.EventID] = record
	return nil
}

func (m *mockEventRepo) UpdateExternalMappings(_ context.Context, eventID string, mappings model.ExternalMappings) error {
	if m.failUpdateMappings {
		return errors.New("db write failed")
	}
	r, ok := m.records[eventID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	r.ExternalEvents = mappings
	m.mappingUpdates++
	return nil
}

func (m *mockEventRepo) Deactivate(_ context.Context, eventID string) error {
	if r, ok := m.records[eventID]; ok {
		r.IsActive = false
	}
	return nil
}

// ── Mock TagGroupRepository ──

type mockTagGroupRepo struct {
	groups map[string]*model.TagGroup
}

func newMockTagGroupRepo() *mockTagGroupRepo {
	return &mockTagGroupRepo{groups: make(map[string]*model.TagGroup)}
}

func (m *mockTagGroupRepo) Create(_ context.Context, group *model.TagGroup) error {
	if group.GroupID == "" {
		group.GroupID = "grp-" + group.Name
	}
	m.groups[group.GroupID] = group
	return nil
}

func (m *mockTagGroupRepo) GetByID(_ context.Context, id string) (*model.TagGroup, error) {
	if g, ok := m.groups[id]; ok {
		return g, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTagGroupRepo) ListByTenant(_ context.Context, tenantID string) ([]model.TagGroup, error) {
	var result []model.TagGroup
	for _, g := range m.groups {
		if g.TenantID == tenantID {
			result = append(result, *g)
		}
	}
	// 与真实仓储一致：按 sort_order, name 排序
	sort.Slice(result, func(i, j int) bool {
		if result[i].SortOrder != result[j].SortOrder {
			return result[i].SortOrder < result[j].SortOrder
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

func (m *mockTagGroupRepo) Update(_ context.Context, group *model.TagGroup) error {
	m.groups[group.GroupID] = group
	return nil
}

func (m *mockTagGroupRepo) Delete(_ context.Context, id string) error {
	delete(m.groups, id)
	return nil
}

// ── Mock TagRepository ──

type mockTagRepo struct {
	tags map[string]*model.Tag
}

func newMockTagRepo() *mockTagRepo {
	return &mockTagRepo{tags: make(map[string]*model.Tag)}
}

func (m *mockTagRepo) Create(_ context.Context, tag *model.Tag) error {
	if tag.TagID == "" {
		tag.TagID = "tag-" + tag.Name
	}
	m.tags[tag.TagID] = tag
	return nil
}

func (m *mockTagRepo) ListByTenant(_ context.Context, tenantID string) ([]model.Tag, error) {
	var result []model.Tag
	for _, t := range m.tags {
		if t.TenantID == tenantID {
			result = append(result, *t)
		}
	}
	return result, nil
}

func (m *mockTagRepo) FindByNames(_ context.Context, tenantID string, names []string) ([]model.Tag, error) {
	var result []model.Tag
	for _, t := range m.tags {
		if t.TenantID != tenantID {
			continue
		}
		for _, name := range names {
			if t.Name == name {
				result = append(result, *t)
				break
			}
		}
	}
	return result, nil
}

func (m *mockTagRepo) DeleteByName(_ context.Context, tenantID, name string) error {
	for id, t := range m.tags {
		if t.TenantID == tenantID && t.Name == name {
			delete(m.tags, id)
		}
	}
	return nil
}

// ── Mock ColorPresetRepository ──

type mockPresetRepo struct {
	presets map[string]*model.ColorPreset
}

func newMockPresetRepo() *mockPresetRepo {
	return &mockPresetRepo{presets: make(map[string]*model.ColorPreset)}
}

func presetKey(tenantID, ownerID, name string) string {
	return tenantID + "/" + ownerID + "/" + name
}

func (m *mockPresetRepo) Create(_ context.Context, preset *model.ColorPreset) error {
	m.presets[presetKey(preset.TenantID, preset.OwnerID, preset.Name)] = preset
	return nil
}

func (m *mockPresetRepo) GetByName(_ context.Context, tenantID, ownerID, name string) (*model.ColorPreset, error) {
	if p, ok := m.presets[presetKey(tenantID, ownerID, name)]; ok {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPresetRepo) ListByTenant(_ context.Context, tenantID string) ([]model.ColorPreset, error) {
	var result []model.ColorPreset
	for _, p := range m.presets {
		if p.TenantID == tenantID {
			result = append(result, *p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *mockPresetRepo) ListByOwner(_ context.Context, tenantID, ownerID string) ([]model.ColorPreset, error) {
	var result []model.ColorPreset
	for _, p := range m.presets {
		if p.TenantID == tenantID && p.OwnerID == ownerID {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (m *mockPresetRepo) Delete(_ context.Context, tenantID, ownerID, name string) error {
	delete(m.presets, presetKey(tenantID, ownerID, name))
	return nil
}

// ── Mock SettingRepository ──

type mockSettingRepo struct {
	values map[string]string
}

func newMockSettingRepo() *mockSettingRepo {
	return &mockSettingRepo{values: make(map[string]string)}
}

func (m *mockSettingRepo) Get(_ context.Context, tenantID, key string) (string, error) {
	return m.values[tenantID+"/"+key], nil
}

func (m *mockSettingRepo) Set(_ context.Context, tenantID, key, value string) error {
	m.values[tenantID+"/"+key] = value
	return nil
}

// ── Mock CalendarGateway ──

// mockGateway 内存日历网关，记录全部写调用
type mockGateway struct {
	events map[string]*gateway.EventSnapshot

	getCalls    int
	createCalls int
	updateCalls []gateway.UpdateFields
	updateIDs   []string
	deleteCalls []string
	nextID      int

	failCreate   bool // 模拟创建失败
	transientGet bool // Get 返回瞬时故障
}

func newMockGateway() *mockGateway {
	return &mockGateway{events: make(map[string]*gateway.EventSnapshot)}
}

func (m *mockGateway) Get(_ context.Context, externalID string) (*gateway.EventSnapshot, error) {
	m.getCalls++
	if m.transientGet {
		return nil, &gateway.TransientError{Err: errors.New("timeout")}
	}
	if e, ok := m.events[externalID]; ok {
		copied := *e
		return &copied, nil
	}
	return nil, gateway.ErrEventNotFound
}

func (m *mockGateway) CreateRecurring(_ context.Context, input gateway.RecurringEventInput) (string, error) {
	m.createCalls++
	if m.failCreate {
		return "", &gateway.TransientError{Err: errors.New("create failed")}
	}
	m.nextID++
	id := fmt.Sprintf("ext-%d", m.nextID)
	m.events[id] = &gateway.EventSnapshot{
		ExternalID:  id,
		Summary:     input.Summary,
		Description: input.Description,
		ColorCode:   input.ColorCode,
		Start:       input.Start,
		Rule:        input.Rule,
	}
	return id, nil
}

func (m *mockGateway) CreateAllDay(_ context.Context, input gateway.AllDayEventInput) (string, error) {
	m.createCalls++
	m.nextID++
	id := fmt.Sprintf("ext-%d", m.nextID)
	m.events[id] = &gateway.EventSnapshot{
		ExternalID:  id,
		Summary:     input.Summary,
		Description: input.Description,
		Start:       input.StartDate,
	}
	return id, nil
}

func (m *mockGateway) Update(_ context.Context, externalID string, fields gateway.UpdateFields) error {
	m.updateCalls = append(m.updateCalls, fields)
	m.updateIDs = append(m.updateIDs, externalID)
	e, ok := m.events[externalID]
	if !ok {
		return gateway.ErrEventNotFound
	}
	if fields.Summary != nil {
		e.Summary = *fields.Summary
	}
	if fields.Description != nil {
		e.Description = *fields.Description
	}
	if fields.ColorCode != nil {
		e.ColorCode = *fields.ColorCode
	}
	return nil
}

func (m *mockGateway) Delete(_ context.Context, externalID string) error {
	m.deleteCalls = append(m.deleteCalls, externalID)
	delete(m.events, externalID)
	return nil
}

// writes 本网关累计的写调用次数（创建 + 更新 + 删除）
func (m *mockGateway) writes() int {
	return m.createCalls + len(m.updateCalls) + len(m.deleteCalls)
}

// ── Mock GatewayFactory ──

type mockGatewayFactory struct {
	gw          *mockGateway
	failAccount string // 该账户构建网关时返回错误
}

func (f *mockGatewayFactory) ForAccount(account *model.CalendarAccount, _ gateway.TokenPersistFunc) (gateway.CalendarGateway, error) {
	if f.failAccount != "" && account.AccountID == f.failAccount {
		return nil, errors.New("凭证不可用")
	}
	return f.gw, nil
}
