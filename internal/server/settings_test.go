package server

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/seoforge/seoforge/internal/store"
	"github.com/seoforge/seoforge/models"
)

func newSettingsTest(t *testing.T) (*SettingsHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &SettingsHandler{Store: &store.Store{DB: db}}, mock
}

var settingsCols = []string{"user_id", "name", "brand_name", "brand_url",
	"brief_prompt_override", "writer_prompt_override", "updated_at"}

func TestGetSettingsDefaultsWhenUnsaved(t *testing.T) {
	h, mock := newSettingsTest(t)
	e := echo.New()

	mock.ExpectQuery(`SELECT .+ FROM user_settings WHERE user_id=\$1`).
		WithArgs("user-1").
		WillReturnError(sql.ErrNoRows)

	req := httptest.NewRequest(http.MethodGet, "/api/settings", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.Set("user_id", "user-1")

	if err := h.get(ctx); err != nil {
		t.Fatalf("get: %v", err)
	}
	var resp models.Settings
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.UserID != "user-1" || resp.BrandName != "" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestUpdateSettingsTrimsAndUpserts(t *testing.T) {
	h, mock := newSettingsTest(t)
	e := echo.New()
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO user_settings .+ ON CONFLICT \(user_id\) DO UPDATE SET`).
		WithArgs("user-1", "Jo", "Acme Tools", "https://acme.example.com", "", "Playful voice.").
		WillReturnRows(sqlmock.NewRows(settingsCols).
			AddRow("user-1", "Jo", "Acme Tools", "https://acme.example.com", "", "Playful voice.", now))

	body := `{"name":"  Jo  ","brand_name":"Acme Tools","brand_url":" https://acme.example.com ","brief_prompt_override":"","writer_prompt_override":"Playful voice."}`
	req := httptest.NewRequest(http.MethodPut, "/api/settings", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.Set("user_id", "user-1")

	if err := h.update(ctx); err != nil {
		t.Fatalf("update: %v", err)
	}
	var resp models.Settings
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.BrandName != "Acme Tools" || resp.WriterPromptOverride != "Playful voice." {
		t.Fatalf("resp = %+v", resp)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
