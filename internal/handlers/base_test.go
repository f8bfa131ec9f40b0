package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "github.com/Ramsey-B/clover/pkg/context"
)

func newTestContext(t *testing.T) echo.Context {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec)
}

func TestParseID(t *testing.T) {
	c := newTestContext(t)
	c.SetParamNames("id")
	c.SetParamValues("42")

	id, err := ParseID(c, "id")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestParseIDRejectsInvalid(t *testing.T) {
	for _, raw := range []string{"", "abc", "-3", "0", "1.5"} {
		c := newTestContext(t)
		c.SetParamNames("id")
		c.SetParamValues(raw)

		_, err := ParseID(c, "id")
		assert.Error(t, err, "value %q", raw)
	}
}

func TestActor(t *testing.T) {
	c := newTestContext(t)
	assert.Equal(t, "anonymous", Actor(c))

	ctx := appctx.SetUserID(c.Request().Context(), "reviewer-7")
	c.SetRequest(c.Request().WithContext(ctx))
	assert.Equal(t, "reviewer-7", Actor(c))
}
