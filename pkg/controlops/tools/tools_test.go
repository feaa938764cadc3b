package tools

import (
	"bytes"
	"cmp"
	"errors"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Subash107/control-ops-local1/pkg/controlops/apierr"
	"github.com/Subash107/control-ops-local1/pkg/controlops/auth"
	"github.com/Subash107/control-ops-local1/pkg/controlops/database"
	"github.com/Subash107/control-ops-local1/pkg/controlops/models"
	"github.com/Subash107/control-ops-local1/pkg/controlops/paging"
	"github.com/Subash107/control-ops-local1/pkg/controlops/tags"
)

var testTokens = auth.NewTokenService("test-secret", 15*time.Minute, time.Hour)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := database.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate failed: %v", err)
	}
	return db
}

func setupTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewHandler(db)
	handler.RegisterRoutes(r.Group("/tools", auth.AuthMiddleware(testTokens, db)))
	return r
}

func createTestUser(t *testing.T, db *gorm.DB, username string, role models.Role) models.User {
	user := models.User{Username: username, PasswordHash: "unused", Role: role}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

func getAuthHeader(user models.User) string {
	pair, _ := testTokens.IssuePair(user)
	return "Bearer " + pair.AccessToken
}

func doRequest(r *gin.Engine, method, path string, body any, authHeader string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", authHeader)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

type fixture struct {
	name     string
	category string
	desc     string
	tags     []string
	created  time.Time
}

func seedTools(t *testing.T, db *gorm.DB, fixtures []fixture) []models.Tool {
	out := make([]models.Tool, 0, len(fixtures))
	for _, f := range fixtures {
		tagRows, err := tags.Resolve(db, f.tags)
		require.NoError(t, err)
		tool := models.Tool{Name: f.name, Category: f.category, Description: f.desc, Tags: tagRows, CreatedAt: f.created}
		require.NoError(t, db.Omit("Tags.*").Create(&tool).Error)
		out = append(out, tool)
	}
	return out
}

func names(items []models.Tool) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Name
	}
	return out
}

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func catalog(t *testing.T, db *gorm.DB) []models.Tool {
	return seedTools(t, db, []fixture{
		{name: "Jenkins", category: "ci", desc: "Automation server", tags: []string{"ci", "build"}, created: base},
		{name: "Prometheus", category: "monitoring", desc: "Metrics and alerting", tags: []string{"metrics"}, created: base.Add(time.Hour)},
		{name: "Grafana", category: "Monitoring", desc: "Dashboards for metrics", tags: []string{"metrics", "dashboards"}, created: base.Add(2 * time.Hour)},
		{name: "Argo", category: "ci", desc: "GitOps 100% declarative", tags: nil, created: base.Add(2 * time.Hour)},
		{name: "Loki", category: "monitoring", desc: "Log aggregation", tags: []string{"Logs"}, created: base.Add(3 * time.Hour)},
	})
}

var firstPage = paging.Params{Page: 1, PageSize: 20}

func TestListDefaultSortNewestFirstWithIDTiebreak(t *testing.T) {
	db := setupTestDB(t)
	catalog(t, db)

	items, total, err := List(t.Context(), db, Filters{}, nil, firstPage)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	// Grafana and Argo share created_at; Argo has the higher id
	assert.Equal(t, []string{"Loki", "Argo", "Grafana", "Prometheus", "Jenkins"}, names(items))
}

func TestListMultiKeySort(t *testing.T) {
	db := setupTestDB(t)
	catalog(t, db)

	spec, err := ParseSort("category:asc,name:desc")
	require.NoError(t, err)
	items, _, err := List(t.Context(), db, Filters{}, spec, firstPage)
	require.NoError(t, err)
	assert.Equal(t, []string{"Grafana", "Jenkins", "Argo", "Prometheus", "Loki"}, names(items))

	// Repeated identical queries return identical ordering
	again, _, err := List(t.Context(), db, Filters{}, spec, firstPage)
	require.NoError(t, err)
	assert.Equal(t, names(items), names(again))
}

func TestListOrderingInvariant(t *testing.T) {
	db := setupTestDB(t)
	var fixtures []fixture
	for i := 0; i < 30; i++ {
		fixtures = append(fixtures, fixture{
			name:     fmt.Sprintf("tool-%02d", i),
			category: []string{"a", "b", "c"}[i%3],
			created:  base.Add(time.Duration(i%4) * time.Minute),
		})
	}
	seedTools(t, db, fixtures)

	for _, s := range []string{"category", "category:desc,created_at", "created_at:desc,category:asc", "name:desc"} {
		t.Run(s, func(t *testing.T) {
			spec, err := ParseSort(s)
			require.NoError(t, err)

			// Walk all pages of 7 and check the concatenation is totally ordered
			var all []models.Tool
			for page := 1; page <= 5; page++ {
				items, total, err := List(t.Context(), db, Filters{}, spec, paging.Params{Page: page, PageSize: 7, Offset: (page - 1) * 7})
				require.NoError(t, err)
				assert.Equal(t, int64(30), total)
				all = append(all, items...)
			}
			require.Len(t, all, 30)

			order := func(a, b models.Tool) int {
				for _, k := range spec {
					var c int
					switch k.Field {
					case SortName:
						c = cmp.Compare(a.Name, b.Name)
					case SortCategory:
						c = cmp.Compare(a.Category, b.Category)
					case SortCreatedAt:
						c = a.CreatedAt.Compare(b.CreatedAt)
					}
					if k.Desc {
						c = -c
					}
					if c != 0 {
						return c
					}
				}
				return cmp.Compare(b.ID, a.ID)
			}
			for i := 1; i < len(all); i++ {
				assert.Negative(t, order(all[i-1], all[i]), "rows %d and %d out of order", i-1, i)
			}
		})
	}
}

func TestListFilters(t *testing.T) {
	db := setupTestDB(t)
	catalog(t, db)
	byName := SortSpec{{Field: SortName}}

	tests := []struct {
		name    string
		filters Filters
		want    []string
	}{
		{"category case-insensitive", Filters{Category: "MONITORING"}, []string{"Grafana", "Loki", "Prometheus"}},
		{"search name", Filters{Search: "gra"}, []string{"Grafana"}},
		{"search description", Filters{Search: "METRICS"}, []string{"Grafana", "Prometheus"}},
		{"search escapes wildcards", Filters{Search: "100%"}, []string{"Argo"}},
		{"search underscore literal", Filters{Search: "_"}, []string{}},
		{"tag", Filters{Tag: "metrics"}, []string{"Grafana", "Prometheus"}},
		{"tag normalized", Filters{Tag: " LOGS "}, []string{"Loki"}},
		{"tag unknown", Filters{Tag: "nope"}, []string{}},
		{"combined", Filters{Category: "monitoring", Tag: "metrics", Search: "dash"}, []string{"Grafana"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, total, err := List(t.Context(), db, tt.filters, byName, firstPage)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(items))
			assert.Equal(t, int64(len(tt.want)), total)
		})
	}
}

func TestListFiltersFoldNonASCII(t *testing.T) {
	db := setupTestDB(t)
	seedTools(t, db, []fixture{
		{name: "Überwacher", category: "Überwachung", desc: "Prüft Dienste", created: base},
		{name: "Jenkins", category: "ci", desc: "Automation server", created: base.Add(time.Hour)},
	})

	tests := []struct {
		name    string
		filters Filters
	}{
		{"category", Filters{Category: "überwachung"}},
		{"category upper", Filters{Category: "ÜBERWACHUNG"}},
		{"search name", Filters{Search: "überw"}},
		{"search description", Filters{Search: "PRÜFT"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, total, err := List(t.Context(), db, tt.filters, nil, firstPage)
			require.NoError(t, err)
			assert.Equal(t, int64(1), total)
			assert.Equal(t, []string{"Überwacher"}, names(items))
		})
	}
}

func TestListPaginationTotal(t *testing.T) {
	db := setupTestDB(t)
	catalog(t, db)

	items, total, err := List(t.Context(), db, Filters{Category: "monitoring"}, SortSpec{{Field: SortName}}, paging.Params{Page: 2, PageSize: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, []string{"Prometheus"}, names(items))
}

func TestListPreloadsTagsSorted(t *testing.T) {
	db := setupTestDB(t)
	catalog(t, db)

	items, _, err := List(t.Context(), db, Filters{Tag: "ci"}, nil, firstPage)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, []string{"build", "ci"}, items[0].TagNames())
}

func TestCategories(t *testing.T) {
	db := setupTestDB(t)
	catalog(t, db)

	categories, err := Categories(t.Context(), db)
	require.NoError(t, err)
	assert.Equal(t, []string{"Monitoring", "ci", "monitoring"}, categories)
}

func TestListEndpoint(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "alice", models.RoleUser)
	catalog(t, db)

	resp := doRequest(router, "GET", "/tools?category=monitoring&sort=name:asc&page_size=2", nil, getAuthHeader(user))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var result paging.Result[ToolResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	assert.Equal(t, int64(3), result.Total)
	assert.Equal(t, 2, result.Pages)
	assert.Equal(t, 1, result.Page)
	require.Len(t, result.Items, 2)
	assert.Equal(t, "Grafana", result.Items[0].Name)
	assert.Equal(t, []string{"dashboards", "metrics"}, result.Items[0].Tags)

	resp = doRequest(router, "GET", "/tools?q=automation&sort_by=name&sort_dir=asc&limit=1&offset=0", nil, getAuthHeader(user))
	require.Equal(t, http.StatusOK, resp.Code)
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	assert.Equal(t, int64(1), result.Total)
	assert.Equal(t, "Jenkins", result.Items[0].Name)

	for _, query := range []string{"sort=size", "sort=name,name", "sort=name:sideways", "sort=a,b,c,d", "sort_by=url", "sort_dir=up", "page_size=1000"} {
		resp := doRequest(router, "GET", "/tools?"+query, nil, getAuthHeader(user))
		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code, query)
	}

	resp = doRequest(router, "GET", "/tools", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestCreateTool(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	admin := createTestUser(t, db, "admin", models.RoleAdmin)

	resp := doRequest(router, "POST", "/tools", gin.H{
		"name": "", "category": "general", "tags": []string{"a"},
	}, getAuthHeader(admin))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)

	resp = doRequest(router, "POST", "/tools", gin.H{
		"name": "Jenkins", "url": "https://www.jenkins.io/", "tags": []string{"B", "a", " b "},
	}, getAuthHeader(admin))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var tool ToolResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &tool))
	assert.Equal(t, "Jenkins", tool.Name)
	assert.Equal(t, models.DefaultCategory, tool.Category)
	assert.ElementsMatch(t, []string{"a", "b"}, tool.Tags)

	resp = doRequest(router, "GET", fmt.Sprintf("/tools/%d", tool.ID), nil, getAuthHeader(admin))
	require.Equal(t, http.StatusOK, resp.Code)
	var fetched ToolResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &fetched))
	assert.ElementsMatch(t, []string{"a", "b"}, fetched.Tags)

	var entry models.AuditLog
	require.NoError(t, db.Where("entity_type = ? AND action = ?", models.EntityTool, models.AuditCreate).First(&entry).Error)
	assert.Equal(t, tool.ID, *entry.EntityID)
	assert.Equal(t, admin.ID, *entry.ActorUserID)
	assert.Nil(t, entry.Before)
	assert.Contains(t, string(entry.After), `"Jenkins"`)
}

func TestCreateToolEmptyCategoryRejected(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	admin := createTestUser(t, db, "admin", models.RoleAdmin)

	resp := doRequest(router, "POST", "/tools", gin.H{"name": "Jenkins", "category": ""}, getAuthHeader(admin))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestCreateToolDuplicateName(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	admin := createTestUser(t, db, "admin", models.RoleAdmin)

	body := gin.H{"name": "Grafana", "tags": []string{"dashboards"}}
	resp := doRequest(router, "POST", "/tools", body, getAuthHeader(admin))
	require.Equal(t, http.StatusOK, resp.Code)

	body["tags"] = []string{"brand-new"}
	resp = doRequest(router, "POST", "/tools", body, getAuthHeader(admin))
	require.Equal(t, http.StatusConflict, resp.Code)

	var errBody apierr.Body
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &errBody))
	assert.Equal(t, "name", errBody.Field)
	assert.Equal(t, "Tool name already exists", errBody.Message)

	var count int64
	db.Model(&models.Tool{}).Where("name = ?", "Grafana").Count(&count)
	assert.Equal(t, int64(1), count)
	db.Model(&models.Tag{}).Where("name = ?", "brand-new").Count(&count)
	assert.Zero(t, count, "tags of the failed insert are rolled back")
	db.Model(&models.AuditLog{}).Count(&count)
	assert.Equal(t, int64(1), count, "no audit entry for the failed insert")

	// Names are case-sensitive
	resp = doRequest(router, "POST", "/tools", gin.H{"name": "grafana"}, getAuthHeader(admin))
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestTranslateWriteErrorFromConstraint(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Create(&models.Tool{Name: "Loki"}).Error)

	err := db.Create(&models.Tool{Name: "Loki"}).Error
	require.Error(t, err)
	assert.Equal(t, errDuplicateName, translateWriteError(err))

	other := errors.New("boom")
	assert.Equal(t, other, translateWriteError(other))
}

func TestCreateToolTooManyTags(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	admin := createTestUser(t, db, "admin", models.RoleAdmin)

	manyTags := make([]string, 21)
	for i := range manyTags {
		manyTags[i] = fmt.Sprintf("tag-%d", i)
	}
	resp := doRequest(router, "POST", "/tools", gin.H{"name": "Sprawl", "tags": manyTags}, getAuthHeader(admin))
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)

	var count int64
	db.Model(&models.Tool{}).Count(&count)
	assert.Zero(t, count)
	db.Model(&models.Tag{}).Count(&count)
	assert.Zero(t, count)
}

func TestWritesRequireAdmin(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "alice", models.RoleUser)
	tools := catalog(t, db)

	resp := doRequest(router, "POST", "/tools", gin.H{"name": "Nope"}, getAuthHeader(user))
	assert.Equal(t, http.StatusForbidden, resp.Code)
	resp = doRequest(router, "PUT", fmt.Sprintf("/tools/%d", tools[0].ID), gin.H{"name": "Nope"}, getAuthHeader(user))
	assert.Equal(t, http.StatusForbidden, resp.Code)
	resp = doRequest(router, "DELETE", fmt.Sprintf("/tools/%d", tools[0].ID), nil, getAuthHeader(user))
	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestUpdateTool(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	admin := createTestUser(t, db, "admin", models.RoleAdmin)
	tools := catalog(t, db)
	jenkins := tools[0]

	resp := doRequest(router, "PUT", fmt.Sprintf("/tools/%d", jenkins.ID), gin.H{
		"description": "CI server", "tags": []string{"CI", "java"},
	}, getAuthHeader(admin))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var updated ToolResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &updated))
	assert.Equal(t, "Jenkins", updated.Name, "omitted fields are unchanged")
	assert.Equal(t, "ci", updated.Category)
	assert.Equal(t, "CI server", updated.Description)
	assert.ElementsMatch(t, []string{"ci", "java"}, updated.Tags)

	reloaded, err := Get(t.Context(), db, jenkins.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"ci", "java"}, reloaded.TagNames())

	var entry models.AuditLog
	require.NoError(t, db.Where("action = ?", models.AuditUpdate).First(&entry).Error)
	assert.Contains(t, string(entry.Before), `"build"`)
	assert.Contains(t, string(entry.After), `"java"`)

	// Clearing tags
	resp = doRequest(router, "PUT", fmt.Sprintf("/tools/%d", jenkins.ID), gin.H{"tags": []string{}}, getAuthHeader(admin))
	require.Equal(t, http.StatusOK, resp.Code)
	reloaded, _ = Get(t.Context(), db, jenkins.ID)
	assert.Empty(t, reloaded.Tags)

	// Renaming onto another tool's name
	resp = doRequest(router, "PUT", fmt.Sprintf("/tools/%d", jenkins.ID), gin.H{"name": "Grafana"}, getAuthHeader(admin))
	assert.Equal(t, http.StatusConflict, resp.Code)

	// Keeping its own name is not a conflict
	resp = doRequest(router, "PUT", fmt.Sprintf("/tools/%d", jenkins.ID), gin.H{"name": "Jenkins"}, getAuthHeader(admin))
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = doRequest(router, "PUT", "/tools/9999", gin.H{"name": "Ghost"}, getAuthHeader(admin))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestUpdateToolTooManyTags(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	admin := createTestUser(t, db, "admin", models.RoleAdmin)
	jenkins := catalog(t, db)[0]

	var tagsBefore int64
	db.Model(&models.Tag{}).Count(&tagsBefore)

	manyTags := make([]string, 21)
	for i := range manyTags {
		manyTags[i] = fmt.Sprintf("tag-%d", i)
	}
	resp := doRequest(router, "PUT", fmt.Sprintf("/tools/%d", jenkins.ID), gin.H{"name": "Renamed", "tags": manyTags}, getAuthHeader(admin))
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)

	reloaded, err := Get(t.Context(), db, jenkins.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jenkins", reloaded.Name)
	assert.Equal(t, []string{"build", "ci"}, reloaded.TagNames())

	var tagsAfter int64
	db.Model(&models.Tag{}).Count(&tagsAfter)
	assert.Equal(t, tagsBefore, tagsAfter)

	var audits int64
	db.Model(&models.AuditLog{}).Count(&audits)
	assert.Zero(t, audits)
}

func TestDeleteTool(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	admin := createTestUser(t, db, "admin", models.RoleAdmin)
	tools := catalog(t, db)
	grafana := tools[2]
	require.NoError(t, db.Create(&models.Favorite{UserID: admin.ID, ToolID: grafana.ID}).Error)

	resp := doRequest(router, "DELETE", fmt.Sprintf("/tools/%d", grafana.ID), nil, getAuthHeader(admin))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"ok":true}`, resp.Body.String())

	var count int64
	db.Model(&models.Tool{}).Where("id = ?", grafana.ID).Count(&count)
	assert.Zero(t, count)
	db.Model(&models.ToolTag{}).Where("tool_id = ?", grafana.ID).Count(&count)
	assert.Zero(t, count)
	db.Model(&models.Favorite{}).Count(&count)
	assert.Zero(t, count)

	var entry models.AuditLog
	require.NoError(t, db.Where("action = ? AND entity_type = ?", models.AuditDelete, models.EntityTool).First(&entry).Error)
	assert.Equal(t, grafana.ID, *entry.EntityID)
	assert.Nil(t, entry.After)
	assert.Contains(t, string(entry.Before), `"Grafana"`)

	resp = doRequest(router, "DELETE", fmt.Sprintf("/tools/%d", grafana.ID), nil, getAuthHeader(admin))
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = doRequest(router, "GET", "/tools/abc", nil, getAuthHeader(admin))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestCategoriesEndpoint(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "alice", models.RoleUser)
	catalog(t, db)

	resp := doRequest(router, "GET", "/tools/categories", nil, getAuthHeader(user))
	require.Equal(t, http.StatusOK, resp.Code)
	var categories []string
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &categories))
	assert.Contains(t, categories, "ci")
}
