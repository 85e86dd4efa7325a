package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-enrollment-engine/internal/service"
	appErrors "github.com/noah-isme/sma-enrollment-engine/pkg/errors"
)

type rosterExporterMock struct {
	doc        *service.RosterDocument
	err        error
	lastClass  string
	lastFormat string
}

func (m *rosterExporterMock) Export(ctx context.Context, classID, format string) (*service.RosterDocument, error) {
	m.lastClass = classID
	m.lastFormat = format
	return m.doc, m.err
}

func classRouter(mock *rosterExporterMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/classes/:id/roster", NewClassHandler(mock).Roster)
	return r
}

func TestClassHandlerRosterDownload(t *testing.T) {
	mock := &rosterExporterMock{doc: &service.RosterDocument{Filename: "roster-C1.csv", ContentType: "text/csv", Body: []byte("#,Student\n")}}
	w, _ := serve(t, classRouter(mock), http.MethodGet, "/classes/C1/roster", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "C1", mock.lastClass)
	assert.Equal(t, "csv", mock.lastFormat)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="roster-C1.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "#,Student\n", w.Body.String())
}

func TestClassHandlerRosterErrors(t *testing.T) {
	mock := &rosterExporterMock{err: appErrors.Clone(appErrors.ErrNotFound, "class not found")}
	w, env := serve(t, classRouter(mock), http.MethodGet, "/classes/missing/roster?format=pdf", "")

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "pdf", mock.lastFormat)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}
